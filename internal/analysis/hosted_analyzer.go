package analysis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const HOSTED_ANALYZER = "hosted"

// HostedAnalyzer scores sentiment with a transformer model behind an HTTP
// endpoint. It does not produce themes or emotions.
type HostedAnalyzer struct {
	client *clients.HuggingFaceClient
}

func NewHostedAnalyzer(client *clients.HuggingFaceClient) *HostedAnalyzer {
	return &HostedAnalyzer{client: client}
}

func (a *HostedAnalyzer) Name() string {
	return HOSTED_ANALYZER
}

func (a *HostedAnalyzer) AnalyzeBatch(ctx context.Context, comments []models.Comment) ([]models.AnalysisResult, error) {
	if len(comments) == 0 {
		return nil, nil
	}

	req := models.SentimentAnalysisBatchRequest{
		Posts: make([]models.SentimentAnalysisRequest, 0, len(comments)),
	}
	known := make(map[string]struct{}, len(comments))
	for _, c := range comments {
		req.Posts = append(req.Posts, models.SentimentAnalysisRequest{
			ContentID: c.ID,
			Text:      c.Text,
		})
		known[c.ID] = struct{}{}
	}

	resp, err := a.client.GetBatchedSentimentAnalysis(ctx, req)
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return nil, Permanent(err)
		}
		return nil, err
	}

	results := make([]models.AnalysisResult, 0, len(resp))
	for _, r := range resp {
		if _, ok := known[r.ContentID]; !ok {
			continue
		}
		label, ok := ParseSentiment(r.SentimentLabel)
		if !ok {
			slog.Warn("[HostedAnalyzer] Unrecognized sentiment label",
				slog.String("comment_id", r.ContentID),
				slog.String("label", r.SentimentLabel))
			continue
		}
		delete(known, r.ContentID)
		results = append(results, newResult(r.ContentID, label, r.SentimentScore, r.Confidence, HOSTED_ANALYZER))
	}

	return results, nil
}
