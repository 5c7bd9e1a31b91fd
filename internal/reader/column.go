package reader

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/utils"
)

// columnKeywords are matched against accent-folded, lowercased headers.
var columnKeywords = []string{
	"comentario", "comment", "feedback", "opinion", "observacion",
	"sugerencia", "resena", "review", "mensaje", "texto", "text", "respuesta",
}

// headerMatches reports whether a header names a comment column. Keywords
// must be whole words, optionally plural, and only the part before a "de" or
// "of" qualifier counts, so "Fecha de respuesta" is a date column.
func headerMatches(header string) bool {
	tokens := strings.Fields(utils.NormalizeText(header))
	for i, tok := range tokens {
		if i > 0 && (tok == "de" || tok == "del" || tok == "of") {
			tokens = tokens[:i]
			break
		}
	}
	for _, tok := range tokens {
		for _, kw := range columnKeywords {
			if tok == kw || tok == kw+"s" || tok == kw+"es" {
				return true
			}
		}
	}
	return false
}

// DetectColumn picks the column that holds free-text comments. An explicit
// name wins; otherwise the first header naming a known keyword; otherwise
// the column with the longest average text.
func DetectColumn(headers []string, rows [][]string, explicit string) (int, error) {
	if explicit != "" {
		want := utils.NormalizeText(explicit)
		for i, h := range headers {
			if utils.NormalizeText(h) == want {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: column %q not found", models.ErrData, explicit)
	}

	for i, h := range headers {
		if headerMatches(h) {
			return i, nil
		}
	}

	best, bestAvg := -1, 0.0
	for col := range headers {
		total, count := 0, 0
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" || !hasLetters(cell) {
				continue
			}
			total += utf8.RuneCountInString(cell)
			count++
		}
		if count == 0 {
			continue
		}
		if avg := float64(total) / float64(count); avg > bestAvg {
			best, bestAvg = col, avg
		}
	}
	if best < 0 {
		return -1, fmt.Errorf("%w: no column with free text found", models.ErrData)
	}
	return best, nil
}

func hasLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// validate marks comments that are too short or carry no words.
func validate(c *models.Comment, minLength int) {
	switch {
	case !hasLetters(c.Text):
		c.Valid = false
		c.InvalidReason = "no text content"
	case utf8.RuneCountInString(c.Text) < minLength:
		c.Valid = false
		c.InvalidReason = "too short"
	}
}
