package clients

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const (
	openAIRequestTimeout = 60 * time.Second // Timeout for individual OpenAI API requests
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type OpenAIClient struct {
	Client *openai.Client
}

// NewOpenAIClient builds a go-openai client with its own HTTP timeout. BaseURL
// points the client at any OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		slog.Error("[OpenAIClient] Missing OPENAI_API_KEY in environment variables")
		return nil, fmt.Errorf("%w: missing OPENAI_API_KEY", models.ErrResource)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = openAIRequestTimeout
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{
		Timeout: timeout,
	}

	slog.Info("[OpenAIClient] OpenAI client initialized with custom HTTP timeout",
		slog.Duration("timeout", timeout),
		slog.String("base_url", config.BaseURL))

	return &OpenAIClient{
		Client: openai.NewClientWithConfig(config),
	}, nil
}
