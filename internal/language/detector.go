package language

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/utils"
	"golang.org/x/text/unicode/norm"
)

// DOMINANT_SHARE is the share of marker hits one language needs before a
// comment stops being counted as mixed.
const DOMINANT_SHARE = 0.75

// Lexicons hold accent-folded tokens with apostrophes removed.
var spanishMarkers = toSet(
	"el", "la", "los", "las", "de", "del", "que", "y", "en", "un", "una", "es", "muy",
	"por", "para", "con", "no", "pero", "se", "lo", "le", "me", "mi", "su", "al", "fue",
	"esta", "estan", "son", "mas", "bien", "bueno", "buena", "malo", "mala", "servicio",
	"atencion", "gracias", "todo", "nada", "siempre", "nunca", "cuando", "porque", "como",
	"hay", "tiene", "excelente", "pesimo", "producto", "precio", "rapido", "lento", "tarde",
	"atendieron", "llego", "pedido", "local", "cliente", "mejor", "peor", "demasiado",
	"tambien", "ya", "sin", "sobre", "yo", "nos", "ellos", "este", "esto", "eso",
)

var guaraniMarkers = toSet(
	"che", "nde", "pe", "ko", "upe", "ndaje", "mbae", "pora", "ipora", "vai", "ivai",
	"nda", "ndo", "nandejara", "nande", "ore", "hae", "avei", "heta", "michi", "tuicha",
	"aguyje", "aguije", "ndaipori", "ndaiporai", "oi", "peteĩ", "petei", "mokoi", "koaga",
	"rehe", "gui", "ndive", "katu", "voi", "jepe", "hina", "opa", "upeicha", "ajerure",
	"aipota", "ndaikatui", "rogue", "ake", "tereho", "jaha", "nee", "avanee", "kuna",
	"karai", "mita", "ha", "pa", "piko", "nio", "ningo", "kuri", "vaekue", "hikuai",
	"rire", "ramo", "haguã", "hagua", "ndaha", "ndahai", "mbeguekatu", "pya", "pyae",
	"ikatu", "ndikatui", "oho", "ou", "ojapo", "ojapova", "ohecha", "ahecha",
	"aiko", "reiko", "oiko", "tembiapo", "tembiu", "korapy", "jajotopata",
)

// guaraniLetters are nasal vowels that Spanish spelling never uses.
const guaraniLetters = "ãẽĩõũỹ"

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ReplaceAll(utils.FoldAccents(w), "'", "")] = struct{}{}
	}
	return set
}

type Detector struct {
	DominantShare float64
}

func NewDetector() *Detector {
	return &Detector{DominantShare: DOMINANT_SHARE}
}

// Detect classifies the dominant language of text. Confidence is the share of
// marker hits backing the decision; unknown comes with zero confidence.
func (d *Detector) Detect(text string) (models.Language, float64) {
	var spanish, guarani float64
	for _, token := range tokenize(text) {
		folded := strings.NewReplacer("'", "", "’", "").Replace(utils.FoldAccents(token))
		if hasGuaraniSpelling(token) {
			guarani++
			continue
		}
		if _, ok := guaraniMarkers[folded]; ok {
			guarani++
			continue
		}
		if _, ok := spanishMarkers[folded]; ok {
			spanish++
		}
	}

	total := spanish + guarani
	if total == 0 {
		return models.LanguageUnknown, 0
	}

	share := guarani / total
	switch {
	case share >= d.DominantShare:
		return models.LanguageGuarani, share
	case 1-share >= d.DominantShare:
		return models.LanguageSpanish, 1 - share
	default:
		return models.LanguageMixed, 2 * minFloat(share, 1-share)
	}
}

// Annotate sets the language of every comment in place.
func (d *Detector) Annotate(comments []models.Comment) map[models.Language]int {
	counts := make(map[models.Language]int)
	for i := range comments {
		lang, confidence := d.Detect(comments[i].Text)
		comments[i].Language = lang
		comments[i].LanguageConfidence = confidence
		counts[lang]++
	}

	slog.Info("[LanguageDetector] Languages detected",
		slog.Int("spanish", counts[models.LanguageSpanish]),
		slog.Int("guarani", counts[models.LanguageGuarani]),
		slog.Int("mixed", counts[models.LanguageMixed]),
		slog.Int("unknown", counts[models.LanguageUnknown]))
	return counts
}

// tokenize splits on anything but letters, keeping apostrophes between letters
// (the Guaraní glottal stop in mba'e, ko'ãga).
func tokenize(text string) []string {
	text = strings.ToLower(norm.NFC.String(text))
	runes := []rune(text)

	var tokens []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.Is(unicode.Mn, r):
			current = append(current, r)
		case (r == '\'' || r == '’') && len(current) > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			current = append(current, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func hasGuaraniSpelling(token string) bool {
	if strings.ContainsAny(token, guaraniLetters) || strings.Contains(token, "g\u0303") {
		return true
	}
	return strings.ContainsAny(token, "'’")
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
