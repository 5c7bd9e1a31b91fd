package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const OPENAI_ANALYZER = "openai"

type OpenAIAnalyzer struct {
	client      *openai.Client
	model       string
	temperature float32
	facets      []Facet
}

func NewOpenAIAnalyzer(client *clients.OpenAIClient, model string, temperature float32, facets []Facet) *OpenAIAnalyzer {
	if len(facets) == 0 {
		facets = AllFacets
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIAnalyzer{
		client:      client.Client,
		model:       model,
		temperature: temperature,
		facets:      facets,
	}
}

func (a *OpenAIAnalyzer) Name() string {
	return OPENAI_ANALYZER
}

// AnalyzeBatch sends the whole batch in one chat completion. Entries the model
// skipped or mislabeled are left out of the returned results.
func (a *OpenAIAnalyzer) AnalyzeBatch(ctx context.Context, comments []models.Comment) ([]models.AnalysisResult, error) {
	if len(comments) == 0 {
		return nil, nil
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    buildChatMessages(comments, a.facets),
		Temperature: a.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Warn("[OpenAIAnalyzer] OpenAI returned no choices or empty content")
		return nil, fmt.Errorf("%w: empty response from OpenAI", models.ErrAPI)
	}

	cleaned := CleanOpenAIResponse(resp.Choices[0].Message.Content)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: OpenAI response is not a JSON object", models.ErrAPI)
	}

	var parsed models.OpenAIAnalysisResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		slog.Error("[OpenAIAnalyzer] Failed to parse OpenAI response",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: failed to parse OpenAI response: %v", models.ErrAPI, err)
	}

	results := a.mapResults(comments, parsed.Results)

	slog.Debug("[OpenAIAnalyzer] Batch analyzed",
		slog.Int("comments", len(comments)),
		slog.Int("results", len(results)),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

func (a *OpenAIAnalyzer) mapResults(comments []models.Comment, entries []models.OpenAICommentResult) []models.AnalysisResult {
	seen := make(map[int]struct{}, len(entries))
	results := make([]models.AnalysisResult, 0, len(entries))

	for _, entry := range entries {
		idx, err := strconv.Atoi(strings.TrimSpace(entry.ID))
		if err != nil || idx < 0 || idx >= len(comments) {
			slog.Warn("[OpenAIAnalyzer] Response references unknown comment",
				slog.String("id", entry.ID))
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}

		label, ok := ParseSentiment(entry.Sentiment)
		if !ok {
			slog.Warn("[OpenAIAnalyzer] Unrecognized sentiment label",
				slog.String("comment_id", comments[idx].ID),
				slog.String("label", entry.Sentiment))
			continue
		}
		seen[idx] = struct{}{}

		result := newResult(comments[idx].ID, label, entry.Score, entry.Confidence, OPENAI_ANALYZER)
		if hasFacet(a.facets, FacetThemes) {
			result.Themes = NormalizeThemes(entry.Themes)
		}
		if hasFacet(a.facets, FacetEmotions) {
			result.Emotions = NormalizeEmotions(entry.Emotions)
		}
		results = append(results, result)
	}

	return results
}

// classifyOpenAIError keeps rate limits and server errors retryable and marks
// every other rejected request as permanent.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	wrapped := fmt.Errorf("%w: %v", models.ErrAPI, err)
	if status == 0 || status == http.StatusTooManyRequests || status >= 500 {
		return wrapped
	}

	slog.Error("[OpenAIAnalyzer] OpenAI rejected the request",
		slog.Int("status", status),
		slog.String("error", err.Error()))
	return Permanent(wrapped)
}
