package models

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sentiments lists every label in display order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

type ResultStatus string

const (
	StatusAnalyzed ResultStatus = "analyzed"
	StatusFailed   ResultStatus = "failed"
)

// AnalysisResult is the outcome for exactly one comment. Failed results are
// placeholders that keep the slot of a comment the analyzer never scored.
type AnalysisResult struct {
	CommentID  string             `json:"comment_id"`
	Index      int                `json:"index"`
	Status     ResultStatus       `json:"status"`
	Sentiment  Sentiment          `json:"sentiment,omitempty"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Emotions   map[string]float64 `json:"emotions,omitempty"`
	Themes     []string           `json:"themes,omitempty"`
	Source     string             `json:"source,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (r AnalysisResult) Analyzed() bool {
	return r.Status == StatusAnalyzed
}

func FailedResult(commentID string, index int, err error) AnalysisResult {
	msg := "unanalyzed"
	if err != nil {
		msg = err.Error()
	}
	return AnalysisResult{
		CommentID: commentID,
		Index:     index,
		Status:    StatusFailed,
		Error:     msg,
	}
}
