package models

import (
	"context"
	"errors"
)

// Error categories. Components wrap these so callers can tell the user what
// went wrong without inspecting messages.
var (
	ErrData       = errors.New("data error")
	ErrAPI        = errors.New("api error")
	ErrProcessing = errors.New("processing error")
	ErrResource   = errors.New("resource error")
)

// UserMessage turns any pipeline error into a short message for the terminal.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Analysis was cancelled; results collected so far were kept."
	case errors.Is(err, context.DeadlineExceeded):
		return "Analysis timed out; results collected so far were kept."
	case errors.Is(err, ErrData):
		return "The input file could not be read as customer comments: " + err.Error()
	case errors.Is(err, ErrAPI):
		return "The analysis service did not respond correctly: " + err.Error()
	case errors.Is(err, ErrResource):
		return "A required resource is unavailable: " + err.Error()
	case errors.Is(err, ErrProcessing):
		return "Processing failed: " + err.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}
