package cleaning

import (
	"log/slog"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/utils"
)

const DEFAULT_SIMILARITY_THRESHOLD = 0.95

type Report struct {
	Input   int `json:"input"`
	Kept    int `json:"kept"`
	Invalid int `json:"invalid"`
	Exact   int `json:"exact_duplicates"`
	Near    int `json:"near_duplicates"`
}

type Cleaner struct {
	// Threshold is the minimum similarity for two comments to be considered
	// near duplicates. Values >= 1 disable near-duplicate detection.
	Threshold float64
}

func NewCleaner(threshold float64) *Cleaner {
	if threshold <= 0 {
		threshold = DEFAULT_SIMILARITY_THRESHOLD
	}
	return &Cleaner{Threshold: threshold}
}

type keptComment struct {
	index   int
	norm    string
	symbols string
	runes   int
}

// Clean drops invalid comments and duplicates, keeping the first occurrence.
// Removed duplicates are returned with DuplicateOf pointing at the kept one.
func (c *Cleaner) Clean(comments []models.Comment) ([]models.Comment, []models.Comment, Report) {
	report := Report{Input: len(comments)}

	var kept, removed []models.Comment
	var keptNorm []keptComment
	exact := make(map[string]string)

	for _, comment := range comments {
		if !comment.Valid {
			report.Invalid++
			continue
		}

		normalized := utils.NormalizeText(comment.Text)
		if id, ok := exact[normalized]; ok {
			comment.DuplicateOf = id
			removed = append(removed, comment)
			report.Exact++
			continue
		}

		if id, ok := c.findNear(normalized, keptNorm, kept); ok {
			comment.DuplicateOf = id
			removed = append(removed, comment)
			report.Near++
			continue
		}

		exact[normalized] = comment.ID
		keptNorm = append(keptNorm, keptComment{
			index:   len(kept),
			norm:    normalized,
			symbols: utils.Symbols(normalized),
			runes:   utf8.RuneCountInString(normalized),
		})
		kept = append(kept, comment)
	}

	report.Kept = len(kept)
	slog.Info("[Cleaner] Comments cleaned",
		slog.Int("input", report.Input),
		slog.Int("kept", report.Kept),
		slog.Int("invalid", report.Invalid),
		slog.Int("exact_duplicates", report.Exact),
		slog.Int("near_duplicates", report.Near))

	return kept, removed, report
}

func (c *Cleaner) findNear(normalized string, candidates []keptComment, kept []models.Comment) (string, bool) {
	if c.Threshold >= 1 {
		return "", false
	}
	n := utf8.RuneCountInString(normalized)
	symbols := utils.Symbols(normalized)
	for _, cand := range candidates {
		// a different emoji can flip the sentiment of otherwise equal text
		if cand.symbols != symbols {
			continue
		}
		longer, shorter := n, cand.runes
		if shorter > longer {
			longer, shorter = shorter, longer
		}
		if longer == 0 {
			continue
		}
		// the distance is at least the length difference
		if float64(shorter)/float64(longer) < c.Threshold {
			continue
		}
		if Similarity(normalized, cand.norm) >= c.Threshold {
			return kept[cand.index].ID, true
		}
	}
	return "", false
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
