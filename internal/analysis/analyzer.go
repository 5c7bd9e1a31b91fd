package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/utils"
)

// Analyzer scores one batch of comments. Results reference comments by
// CommentID; comments the backend did not answer for are simply absent.
type Analyzer interface {
	Name() string
	AnalyzeBatch(ctx context.Context, comments []models.Comment) ([]models.AnalysisResult, error)
}

type Facet string

const (
	FacetSentiment Facet = "sentiment"
	FacetThemes    Facet = "themes"
	FacetEmotions  Facet = "emotions"
)

var AllFacets = []Facet{FacetSentiment, FacetThemes, FacetEmotions}

const maxThemesPerComment = 5

// PermanentError marks a failure that will not go away on retry, such as a
// rejected API key or a malformed request.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string  { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

var sentimentSynonyms = map[string]models.Sentiment{
	"positive": models.SentimentPositive,
	"positivo": models.SentimentPositive,
	"positiva": models.SentimentPositive,
	"pos":      models.SentimentPositive,
	"label_2":  models.SentimentPositive,
	"negative": models.SentimentNegative,
	"negativo": models.SentimentNegative,
	"negativa": models.SentimentNegative,
	"neg":      models.SentimentNegative,
	"label_0":  models.SentimentNegative,
	"neutral":  models.SentimentNeutral,
	"neutro":   models.SentimentNeutral,
	"neutra":   models.SentimentNeutral,
	"neu":      models.SentimentNeutral,
	"mixed":    models.SentimentNeutral,
	"mixto":    models.SentimentNeutral,
	"label_1":  models.SentimentNeutral,
}

// ParseSentiment accepts English and Spanish labels in any case.
func ParseSentiment(label string) (models.Sentiment, bool) {
	s, ok := sentimentSynonyms[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// NormalizeThemes lowercases, trims and dedupes themes, keeping model order.
func NormalizeThemes(themes []string) []string {
	seen := make(map[string]struct{}, len(themes))
	var out []string
	for _, t := range themes {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" {
			continue
		}
		key := utils.FoldAccents(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
		if len(out) == maxThemesPerComment {
			break
		}
	}
	return out
}

// NormalizeEmotions lowercases emotion names and clamps intensities to [0,1].
func NormalizeEmotions(emotions map[string]float64) map[string]float64 {
	if len(emotions) == 0 {
		return nil
	}
	out := make(map[string]float64, len(emotions))
	for name, v := range emotions {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		out[name] = clamp(v, 0, 1)
	}
	return out
}

// newResult builds an analyzed result, clamping score and confidence.
func newResult(commentID string, label models.Sentiment, score, confidence float64, source string) models.AnalysisResult {
	return models.AnalysisResult{
		CommentID:  commentID,
		Status:     models.StatusAnalyzed,
		Sentiment:  label,
		Score:      clamp(score, -1, 1),
		Confidence: clamp(confidence, 0, 1),
		Source:     source,
	}
}

// ParseFacets reads a comma separated facet list; sentiment is always included.
func ParseFacets(raw string) ([]Facet, error) {
	set := map[Facet]struct{}{FacetSentiment: {}}
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		f := Facet(part)
		switch f {
		case FacetSentiment, FacetThemes, FacetEmotions:
			set[f] = struct{}{}
		default:
			return nil, fmt.Errorf("%w: unknown facet %q", models.ErrProcessing, part)
		}
	}
	facets := make([]Facet, 0, len(set))
	for f := range set {
		facets = append(facets, f)
	}
	sort.Slice(facets, func(i, j int) bool { return facetOrder(facets[i]) < facetOrder(facets[j]) })
	return facets, nil
}

func facetOrder(f Facet) int {
	for i, known := range AllFacets {
		if known == f {
			return i
		}
	}
	return len(AllFacets)
}

func hasFacet(facets []Facet, f Facet) bool {
	for _, x := range facets {
		if x == f {
			return true
		}
	}
	return false
}
