package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"BATCH_SIZE", "MAX_RETRIES", "DUPLICATE_THRESHOLD", "OPENAI_MODEL", "INITIAL_BACKOFF", "ANALYZER", "HOSTED_ANALYZER_TIMEOUT", "OPENAI_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, DEFAULT_BATCH_SIZE, cfg.BatchSize)
	assert.Equal(t, DEFAULT_MAX_RETRIES, cfg.MaxRetries)
	assert.Equal(t, DEFAULT_DUPLICATE_THRESHOLD, cfg.DuplicateThreshold)
	assert.Equal(t, DEFAULT_OPENAI_MODEL, cfg.OpenAIModel)
	assert.Equal(t, DEFAULT_INITIAL_BACKOFF, cfg.InitialBackoff)
	assert.Equal(t, "openai", cfg.Analyzer)
	assert.Equal(t, DEFAULT_HOSTED_TIMEOUT, cfg.HostedAnalyzerTimeout)
	assert.Equal(t, DEFAULT_OPENAI_TIMEOUT, cfg.OpenAITimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "50")
	t.Setenv("CONCURRENCY", "4")
	t.Setenv("DUPLICATE_THRESHOLD", "0.9")
	t.Setenv("INITIAL_BACKOFF", "250ms")
	t.Setenv("VALKEY_TLS", "true")
	t.Setenv("ANALYZER", "lexicon")
	t.Setenv("HOSTED_ANALYZER_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.InDelta(t, 0.9, cfg.DuplicateThreshold, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.True(t, cfg.ValkeyTLS)
	assert.Equal(t, "lexicon", cfg.Analyzer)
	assert.Equal(t, 5*time.Second, cfg.HostedAnalyzerTimeout)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("BATCH_SIZE", "lots")
	t.Setenv("MAX_BACKOFF", "soon")
	t.Setenv("DUPLICATE_THRESHOLD", "high")

	cfg := Load()

	assert.Equal(t, DEFAULT_BATCH_SIZE, cfg.BatchSize)
	assert.Equal(t, DEFAULT_MAX_BACKOFF, cfg.MaxBackoff)
	assert.Equal(t, DEFAULT_DUPLICATE_THRESHOLD, cfg.DuplicateThreshold)
}
