package analysis

import (
	"context"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/sentiment"
)

const LEXICON_ANALYZER = "lexicon"

// LexiconAnalyzer runs VADER locally. It needs no credentials, which makes it
// the offline fallback; its lexicon is English, so Spanish and Guaraní text
// mostly scores neutral.
type LexiconAnalyzer struct{}

func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{}
}

func (a *LexiconAnalyzer) Name() string {
	return LEXICON_ANALYZER
}

func (a *LexiconAnalyzer) AnalyzeBatch(ctx context.Context, comments []models.Comment) ([]models.AnalysisResult, error) {
	results := make([]models.AnalysisResult, 0, len(comments))
	for _, c := range comments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, label, confidence := sentiment.AnalyzeWithVADER(c.Text)
		results = append(results, newResult(c.ID, label, score, confidence, LEXICON_ANALYZER))
	}
	return results, nil
}
