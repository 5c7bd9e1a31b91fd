package sentiment

import (
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const (
	POSITIVE_THRESHOLD = 0.20
	NEGATIVE_THRESHOLD = -0.20
)

var (
	analyzer    = govader.NewSentimentIntensityAnalyzer()
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]+>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	input = urlPattern.ReplaceAllString(input, "")

	return input
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))
	plainText := strings.Join(strings.Fields(plain), " ")

	return RemoveLinks(plainText)
}

// Label maps a compound score onto the three sentiment labels.
func Label(score float64) models.Sentiment {
	switch {
	case score >= POSITIVE_THRESHOLD:
		return models.SentimentPositive
	case score <= NEGATIVE_THRESHOLD:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// AnalyzeWithVADER returns the compound score, its label and a confidence
// derived from the score magnitude. Neutral confidence grows as the score
// approaches zero.
func AnalyzeWithVADER(text string) (float64, models.Sentiment, float64) {
	plainText := ConvertMarkdownToText(text)

	score := analyzer.PolarityScores(plainText).Compound
	label := Label(score)

	var confidence float64
	if label == models.SentimentNeutral {
		confidence = 1 - math.Abs(score)/POSITIVE_THRESHOLD
	} else {
		confidence = math.Abs(score)
	}

	return score, label, math.Max(0, math.Min(1, confidence))
}
