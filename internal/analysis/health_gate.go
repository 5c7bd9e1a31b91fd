package analysis

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spacesedan/feedbackflow/internal/models"
)

type healthGate struct {
	Analyzer
	health []*atomic.Bool
}

// WithHealthCheck refuses batches while any health flag is false. The refusal
// is retryable, so batches wait out short outages through the normal backoff.
func WithHealthCheck(a Analyzer, health ...*atomic.Bool) Analyzer {
	return healthGate{Analyzer: a, health: health}
}

func (g healthGate) AnalyzeBatch(ctx context.Context, comments []models.Comment) ([]models.AnalysisResult, error) {
	for _, h := range g.health {
		if !h.Load() {
			return nil, fmt.Errorf("%w: %s analyzer is unhealthy", models.ErrAPI, g.Name())
		}
	}
	return g.Analyzer.AnalyzeBatch(ctx, comments)
}
