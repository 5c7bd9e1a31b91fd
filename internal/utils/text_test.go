package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldAccents(t *testing.T) {
	assert.Equal(t, "Opinion", FoldAccents("Opinión"))
	assert.Equal(t, "pora", FoldAccents("porã"))
	assert.Equal(t, "nandu", FoldAccents("ñandú"))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "el servicio fue excelente", NormalizeText("  El SERVICIO fue... ¡excelente!! "))
	assert.Equal(t, "mbae pora", NormalizeText("Mba'e porã"))
	assert.Equal(t, "", NormalizeText("?!..."))
	assert.Equal(t, "la entrega 👍", NormalizeText("La entrega... 👍"))
	assert.NotEqual(t, NormalizeText("La entrega 👍"), NormalizeText("La entrega 😡"))
}

func TestSymbols(t *testing.T) {
	assert.Equal(t, "👍😡", Symbols("bien 👍 pero tarde 😡!"))
	assert.Equal(t, "", Symbols("sin emoji"))
}
