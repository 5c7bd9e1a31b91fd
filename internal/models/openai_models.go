package models

// OpenAICommentRequest is one comment as it is sent in the user message.
// ID is the position inside the batch, not the comment ID.
type OpenAICommentRequest struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type OpenAIAnalysisResponse struct {
	Results []OpenAICommentResult `json:"results"`
}

type OpenAICommentResult struct {
	ID         string             `json:"id"`
	Sentiment  string             `json:"sentiment"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Themes     []string           `json:"themes,omitempty"`
	Emotions   map[string]float64 `json:"emotions,omitempty"`
}
