package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/utils"
	"github.com/valkey-io/valkey-go"
)

const (
	VALKEY_KEY_PREFIX = "feedbackflow:result:"
	MGET_CHUNK_SIZE   = 500
	valkeyRetries     = 3
)

type Valkey struct {
	client *clients.ValkeyClient
	ttl    time.Duration
}

func NewValkey(client *clients.ValkeyClient, ttl time.Duration) *Valkey {
	return &Valkey{client: client, ttl: ttl}
}

func (v *Valkey) GetMany(ctx context.Context, keys []string) (map[string]models.AnalysisResult, error) {
	found := make(map[string]models.AnalysisResult)
	if len(keys) == 0 {
		return found, nil
	}

	for _, chunk := range utils.ChunkSlice(keys, MGET_CHUNK_SIZE) {
		if err := v.mget(ctx, chunk, found); err != nil {
			return nil, err
		}
	}

	slog.Debug("[ValkeyCache] Lookup complete",
		slog.Int("keys", len(keys)),
		slog.Int("hits", len(found)))
	return found, nil
}

func (v *Valkey) mget(ctx context.Context, keys []string, found map[string]models.AnalysisResult) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = VALKEY_KEY_PREFIX + k
	}

	res := v.client.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Mget().Key(prefixed...).Build()
	}, valkeyRetries)
	messages, err := res.ToArray()
	if err != nil {
		return fmt.Errorf("%w: valkey mget: %v", models.ErrResource, err)
	}

	for i, msg := range messages {
		if i >= len(keys) || msg.IsNil() {
			continue
		}
		raw, err := msg.ToString()
		if err != nil {
			continue
		}
		var r models.AnalysisResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			slog.Warn("[ValkeyCache] Dropping unreadable cache entry",
				slog.String("key", keys[i]),
				slog.String("error", err.Error()))
			continue
		}
		found[keys[i]] = r
	}
	return nil
}

func (v *Valkey) SetMany(ctx context.Context, results map[string]models.AnalysisResult) error {
	payloads := make(map[string]string, len(results))
	for key, r := range results {
		if !r.Analyzed() {
			continue
		}
		bytes, err := json.Marshal(strip(r))
		if err != nil {
			return fmt.Errorf("%w: marshal cache entry: %v", models.ErrProcessing, err)
		}
		payloads[VALKEY_KEY_PREFIX+key] = string(bytes)
	}
	if len(payloads) == 0 {
		return nil
	}

	seconds := int64(v.ttl / time.Second)
	responses := v.client.DoMultiWithRetry(ctx, func(c valkey.Client) []valkey.Completed {
		cmds := make([]valkey.Completed, 0, len(payloads))
		for key, value := range payloads {
			if seconds > 0 {
				cmds = append(cmds, c.B().Set().Key(key).Value(value).ExSeconds(seconds).Build())
			} else {
				cmds = append(cmds, c.B().Set().Key(key).Value(value).Build())
			}
		}
		return cmds
	}, valkeyRetries)

	for _, res := range responses {
		if err := res.Error(); err != nil {
			return fmt.Errorf("%w: valkey set: %v", models.ErrResource, err)
		}
	}

	slog.Debug("[ValkeyCache] Results cached", slog.Int("count", len(payloads)))
	return nil
}
