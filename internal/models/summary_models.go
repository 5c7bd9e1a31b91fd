package models

type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

type Summary struct {
	Total             int                   `json:"total"`
	Analyzed          int                   `json:"analyzed"`
	Unanalyzed        int                   `json:"unanalyzed"`
	Distribution      map[Sentiment]int     `json:"distribution"`
	Percentages       map[Sentiment]float64 `json:"percentages"`
	AverageConfidence float64               `json:"average_confidence"`
	AverageScore      float64               `json:"average_score"`
	LowConfidence     int                   `json:"low_confidence"`
	TopThemes         []ThemeCount          `json:"top_themes"`
	EmotionAverages   map[string]float64    `json:"emotion_averages,omitempty"`
	Languages         map[Language]int      `json:"languages,omitempty"`
	PainPoints        []ThemeCount          `json:"pain_points"`
	Strengths         []ThemeCount          `json:"strengths"`
	Recommendations   []string              `json:"recommendations"`
}

// Metrics flattens the summary into named values, e.g. "distribution.negative"
// or "theme.precio".
func (s Summary) Metrics() map[string]float64 {
	m := map[string]float64{
		"total":              float64(s.Total),
		"analyzed":           float64(s.Analyzed),
		"unanalyzed":         float64(s.Unanalyzed),
		"average_confidence": s.AverageConfidence,
		"average_score":      s.AverageScore,
		"low_confidence":     float64(s.LowConfidence),
	}
	for label, count := range s.Distribution {
		m["distribution."+string(label)] = float64(count)
	}
	for label, pct := range s.Percentages {
		m["percentage."+string(label)] = pct
	}
	for _, t := range s.TopThemes {
		m["theme."+t.Theme] = float64(t.Count)
	}
	for name, v := range s.EmotionAverages {
		m["emotion."+name] = v
	}
	for lang, count := range s.Languages {
		m["language."+string(lang)] = float64(count)
	}
	return m
}
