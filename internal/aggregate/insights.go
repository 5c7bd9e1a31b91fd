package aggregate

import (
	"fmt"

	"github.com/spacesedan/feedbackflow/internal/models"
)

const (
	highNegativeShare  = 40.0
	highPositiveShare  = 60.0
	lowConfidenceShare = 0.25
)

func recommend(s models.Summary) []string {
	if s.Analyzed == 0 {
		recs := []string{"No comments were analyzed; check the analyzer configuration and run again."}
		if s.Unanalyzed > 0 {
			recs = append(recs, fmt.Sprintf("%d comments could not be analyzed; rerun them to complete the report.", s.Unanalyzed))
		}
		return recs
	}

	var recs []string
	negative := s.Percentages[models.SentimentNegative]
	positive := s.Percentages[models.SentimentPositive]
	switch {
	case negative >= highNegativeShare:
		recs = append(recs, fmt.Sprintf("Negative feedback is high (%.1f%%); prioritize a response plan for the main complaints.", negative))
	case positive >= highPositiveShare:
		recs = append(recs, fmt.Sprintf("Most feedback is positive (%.1f%%); keep current practices and invite satisfied customers to leave reviews.", positive))
	}

	if len(s.PainPoints) > 0 {
		p := s.PainPoints[0]
		recs = append(recs, fmt.Sprintf("Address %q first: it is the most frequent theme in negative comments (%d mentions).", p.Theme, p.Count))
	}
	if len(s.Strengths) > 0 {
		p := s.Strengths[0]
		recs = append(recs, fmt.Sprintf("Highlight %q in communication: it is the most praised theme (%d mentions).", p.Theme, p.Count))
	}

	if share := float64(s.LowConfidence) / float64(s.Analyzed); share >= lowConfidenceShare {
		recs = append(recs, fmt.Sprintf("%.0f%% of results have low confidence; review them manually.", share*100))
	}
	if s.Unanalyzed > 0 {
		recs = append(recs, fmt.Sprintf("%d comments could not be analyzed; rerun them to complete the report.", s.Unanalyzed))
	}
	return recs
}
