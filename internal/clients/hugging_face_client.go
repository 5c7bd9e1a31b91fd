package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
)

// StatusError is a non-2xx answer from the hosted service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status code %d", e.Code)
	}
	return fmt.Sprintf("status code %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return models.ErrAPI
}

// Retryable reports whether the request may succeed when sent again.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HuggingFaceClient talks to a hosted batch sentiment classifier, such as a
// transformer model served from a Hugging Face space.
type HuggingFaceClient struct {
	Client         *http.Client
	Endpoint       string
	MaxRetries     int
	InitialBackoff time.Duration
}

func NewHuggingFaceClient(endpoint string, timeout time.Duration) (*HuggingFaceClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: missing HOSTED_ANALYZER_URL", models.ErrResource)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	slog.Info("[HuggingFaceClient] Initializing Client",
		slog.Duration("timeout", timeout),
		slog.String("endpoint", endpoint))

	return &HuggingFaceClient{
		Client:         &http.Client{Timeout: timeout},
		Endpoint:       endpoint,
		MaxRetries:     MAX_RETRIES,
		InitialBackoff: INITIAL_BACKOFF,
	}, nil
}

// DoWithRetry retries transport errors and 5xx responses with exponential
// backoff. Any other response is returned to the caller.
func (h *HuggingFaceClient) DoWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := h.InitialBackoff
	attempts := h.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)

		resp, err = h.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		slog.Warn("[HuggingFaceClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if resp != nil {
			resp.Body.Close()
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAPI, err)
	}
	return nil, &StatusError{Code: resp.StatusCode}
}

func (h *HuggingFaceClient) GetBatchedSentimentAnalysis(ctx context.Context, input models.SentimentAnalysisBatchRequest) (models.SentimentAnalysisBatchResponse, error) {
	var result models.SentimentAnalysisBatchResponse
	slog.Debug("[HuggingFaceClient] Requesting sentiment analysis from sentiment analysis service",
		slog.Int("posts", len(input.Posts)))
	start := time.Now()

	err := h.postJSON(ctx, input, &result)
	if err != nil {
		slog.Error("[HuggingFaceClient] Sentiment Analysis request failed",
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return result, err
	}

	slog.Debug("[HuggingFaceClient] Sentiment Analysis request successful",
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

// HealthCheck asks the service root for /health. Any 2xx counts as healthy.
func (h *HuggingFaceClient) HealthCheck(ctx context.Context) bool {
	u, err := url.Parse(h.Endpoint)
	if err != nil {
		return false
	}
	u.Path = "/health"
	u.RawQuery = ""

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := h.Client.Do(req)
	if err != nil {
		slog.Debug("[HuggingFaceClient] Health check failed",
			slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// helper function for posting data to the hosted service
func (h *HuggingFaceClient) postJSON(ctx context.Context, input interface{}, output interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal input: %v", models.ErrProcessing, err)
	}

	resp, err := h.DoWithRetry(ctx, body)
	if err != nil {
		return fmt.Errorf("request failed after retries: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", models.ErrAPI, err)
	}

	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: preview(respBody)}
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[HuggingFaceClient] Failed to unmarshal response",
			slog.String("endpoint", h.Endpoint),
			slog.String("error", err.Error()),
			slog.String("raw_response", preview(respBody)),
			slog.Int("raw_response_length", len(respBody)))

		return fmt.Errorf("%w: failed to unmarshal response: %v", models.ErrAPI, err)
	}

	return nil
}

func preview(respBody []byte) string {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return raw
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
