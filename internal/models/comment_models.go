package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

type Language string

const (
	LanguageSpanish Language = "spanish"
	LanguageGuarani Language = "guarani"
	LanguageMixed   Language = "mixed"
	LanguageUnknown Language = "unknown"
)

// Comment is one unit of customer feedback plus where it came from.
type Comment struct {
	ID                 string        `json:"id"`
	Text               string        `json:"text"`
	Language           Language      `json:"language,omitempty"`
	LanguageConfidence float64       `json:"language_confidence,omitempty"`
	Origin             CommentOrigin `json:"origin"`
	Valid              bool          `json:"valid"`
	InvalidReason      string        `json:"invalid_reason,omitempty"`
	DuplicateOf        string        `json:"duplicate_of,omitempty"`
}

type CommentOrigin struct {
	Source string `json:"source"`
	Sheet  string `json:"sheet,omitempty"`
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
}

// NewComment builds a comment with an ID derived from its origin and text.
func NewComment(origin CommentOrigin, text string) Comment {
	text = strings.TrimSpace(text)
	return Comment{
		ID:     CommentID(origin, text),
		Text:   text,
		Origin: origin,
		Valid:  true,
	}
}

// CommentID generates a stable ID for a comment using its source, sheet, row and text
func CommentID(origin CommentOrigin, text string) string {
	raw := fmt.Sprintf("%s:%s:%d:%s", origin.Source, origin.Sheet, origin.Row, text)
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:8])
}

// TextKey identifies a comment by content only, used as the result cache key.
func TextKey(text string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(hash[:])
}
