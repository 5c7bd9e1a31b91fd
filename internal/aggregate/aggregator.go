package aggregate

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/spacesedan/feedbackflow/internal/models"
)

const (
	DEFAULT_TOP_N                = 10
	DEFAULT_LOW_CONFIDENCE_BELOW = 0.6
)

type Aggregator struct {
	// TopN bounds TopThemes, PainPoints and Strengths.
	TopN int
	// LowConfidenceBelow flags analyzed results whose confidence is lower.
	LowConfidenceBelow float64
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = DEFAULT_TOP_N
	}
	return &Aggregator{TopN: topN, LowConfidenceBelow: DEFAULT_LOW_CONFIDENCE_BELOW}
}

// Aggregate summarizes with the default settings.
func Aggregate(results []models.AnalysisResult, comments []models.Comment) models.Summary {
	return NewAggregator(DEFAULT_TOP_N).Aggregate(results, comments)
}

// Aggregate folds per-comment results into a Summary. Failed placeholders are
// counted as unanalyzed and left out of every statistic. comments may be nil;
// when given, their languages are tallied.
func (a *Aggregator) Aggregate(results []models.AnalysisResult, comments []models.Comment) models.Summary {
	s := models.Summary{
		Total:        len(results),
		Distribution: make(map[models.Sentiment]int, len(models.Sentiments)),
		Percentages:  make(map[models.Sentiment]float64, len(models.Sentiments)),
	}
	for _, label := range models.Sentiments {
		s.Distribution[label] = 0
		s.Percentages[label] = 0
	}

	themes := make(map[string]int)
	negativeThemes := make(map[string]int)
	positiveThemes := make(map[string]int)
	emotionSums := make(map[string]float64)
	emotionCounts := make(map[string]int)
	var confidenceSum, scoreSum float64

	for _, r := range results {
		if !r.Analyzed() {
			s.Unanalyzed++
			continue
		}
		s.Analyzed++
		s.Distribution[r.Sentiment]++
		confidenceSum += r.Confidence
		scoreSum += r.Score
		if r.Confidence < a.LowConfidenceBelow {
			s.LowConfidence++
		}

		seen := make(map[string]struct{}, len(r.Themes))
		for _, theme := range r.Themes {
			key := foldTheme(theme)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			themes[key]++
			switch r.Sentiment {
			case models.SentimentNegative:
				negativeThemes[key]++
			case models.SentimentPositive:
				positiveThemes[key]++
			}
		}

		for name, v := range r.Emotions {
			emotionSums[name] += v
			emotionCounts[name]++
		}
	}

	if s.Analyzed > 0 {
		for label, count := range s.Distribution {
			s.Percentages[label] = 100 * float64(count) / float64(s.Analyzed)
		}
		s.AverageConfidence = confidenceSum / float64(s.Analyzed)
		s.AverageScore = scoreSum / float64(s.Analyzed)
	}

	if len(emotionSums) > 0 {
		s.EmotionAverages = make(map[string]float64, len(emotionSums))
		for name, sum := range emotionSums {
			s.EmotionAverages[name] = sum / float64(emotionCounts[name])
		}
	}

	if len(comments) > 0 {
		s.Languages = make(map[models.Language]int)
		for _, c := range comments {
			lang := c.Language
			if lang == "" {
				lang = models.LanguageUnknown
			}
			s.Languages[lang]++
		}
	}

	s.TopThemes = topCounts(themes, a.TopN)
	s.PainPoints = topCounts(negativeThemes, a.TopN)
	s.Strengths = topCounts(positiveThemes, a.TopN)
	s.Recommendations = recommend(s)

	slog.Info("[Aggregator] Results aggregated",
		slog.Int("total", s.Total),
		slog.Int("analyzed", s.Analyzed),
		slog.Int("unanalyzed", s.Unanalyzed),
		slog.Int("themes", len(themes)))

	return s
}

func foldTheme(theme string) string {
	return strings.ToLower(strings.Join(strings.Fields(theme), " "))
}

// topCounts orders by count, breaking ties alphabetically.
func topCounts(counts map[string]int, n int) []models.ThemeCount {
	out := make([]models.ThemeCount, 0, len(counts))
	for theme, count := range counts {
		out = append(out, models.ThemeCount{Theme: theme, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Theme < out[j].Theme
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
