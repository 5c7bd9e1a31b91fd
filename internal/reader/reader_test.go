package reader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func texts(comments []models.Comment) []string {
	out := make([]string, len(comments))
	for i, c := range comments {
		out[i] = c.Text
	}
	return out
}

func TestReadCSVDetectsCommentColumn(t *testing.T) {
	input := "Fecha;Sucursal;Comentario del cliente\n" +
		"2024-01-02;Centro;La atención fue excelente\n" +
		"2024-01-03;Centro;\n" +
		"2024-01-04;Norte;\"Demoraron mucho; muy lento\"\n" +
		"2024-01-05;Norte;ok\n"

	res, err := Read(strings.NewReader(input), "encuesta.csv", Options{})
	require.NoError(t, err)

	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, "Comentario del cliente", res.Column)
	assert.Equal(t, []string{"La atención fue excelente", "Demoraron mucho; muy lento", "ok"}, texts(res.Comments))

	assert.Equal(t, 2, res.Comments[0].Origin.Row)
	assert.Equal(t, 4, res.Comments[1].Origin.Row)
	assert.Equal(t, "encuesta.csv", res.Comments[0].Origin.Source)

	assert.False(t, res.Comments[2].Valid)
	assert.Equal(t, "too short", res.Comments[2].InvalidReason)
	assert.Equal(t, 1, res.Invalid())
}

func TestReadCSVFallsBackToLongestColumn(t *testing.T) {
	input := "id,score,notes\n" +
		"1,5,Me encantó el producto y el envío fue rápido\n" +
		"2,2,El empaque llegó roto\n"

	res, err := Read(strings.NewReader(input), "data.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, "notes", res.Column)
	assert.Len(t, res.Comments, 2)
}

func TestReadCSVExplicitColumn(t *testing.T) {
	input := "comentario,extra\nuno dos tres,texto secundario largo\n"

	res, err := Read(strings.NewReader(input), "data.csv", Options{Column: "EXTRA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"texto secundario largo"}, texts(res.Comments))

	_, err = Read(strings.NewReader(input), "data.csv", Options{Column: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrData))
}

func TestReadJSONShapes(t *testing.T) {
	t.Run("array of strings", func(t *testing.T) {
		res, err := Read(strings.NewReader(`["Muy bueno", "", "Pésimo servicio"]`), "c.json", Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Muy bueno", "Pésimo servicio"}, texts(res.Comments))
		assert.Equal(t, 3, res.Comments[1].Origin.Row)
	})

	t.Run("wrapped objects", func(t *testing.T) {
		doc := `{"meta": {"total": 2}, "ids": [1, 2], "feedback": [
			{"id": 1, "opinion": "Excelente atención"},
			{"id": 2, "opinion": "Che rogue nde porã"}
		]}`
		res, err := Read(strings.NewReader(doc), "c.json", Options{})
		require.NoError(t, err)
		assert.Equal(t, "opinion", res.Column)
		assert.Equal(t, []string{"Excelente atención", "Che rogue nde porã"}, texts(res.Comments))
		assert.Equal(t, 1, res.Comments[0].Origin.Row)
		assert.Equal(t, models.CommentID(res.Comments[0].Origin, res.Comments[0].Text), res.Comments[0].ID)
	})

	t.Run("no list", func(t *testing.T) {
		_, err := Read(strings.NewReader(`{"a": 1}`), "c.json", Options{})
		assert.ErrorIs(t, err, models.ErrData)
	})
}

func TestReadText(t *testing.T) {
	input := "\ufeffPrimer comentario\n\n   \nSegundo comentario\n12345\n"
	res, err := Read(strings.NewReader(input), "notes.txt", Options{})
	require.NoError(t, err)

	require.Len(t, res.Comments, 3)
	assert.Equal(t, "Primer comentario", res.Comments[0].Text)
	assert.Equal(t, 4, res.Comments[1].Origin.Row)
	assert.False(t, res.Comments[2].Valid)
	assert.Equal(t, "no text content", res.Comments[2].InvalidReason)
}

func TestReadEmptyInput(t *testing.T) {
	_, err := Read(strings.NewReader("\n\n"), "empty.txt", Options{})
	assert.ErrorIs(t, err, models.ErrData)
}

func TestReadExcelAllSheets(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Cliente", "Comentarios"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Ana", "Buen servicio en general"}))
	_, err := f.NewSheet("Enero")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Enero", "A1", &[]any{"Feedback"}))
	require.NoError(t, f.SetSheetRow("Enero", "A2", &[]any{"Tardó demasiado el pedido"}))

	path := filepath.Join(t.TempDir(), "encuesta.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := ReadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "excel", res.Format)
	assert.ElementsMatch(t, []string{"Buen servicio en general", "Tardó demasiado el pedido"}, texts(res.Comments))

	for _, c := range res.Comments {
		assert.NotEmpty(t, c.Origin.Sheet)
		assert.Equal(t, 2, c.Origin.Row)
	}

	only, err := ReadFile(path, Options{Sheet: "enero"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tardó demasiado el pedido"}, texts(only.Comments))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(os.TempDir(), "does-not-exist.csv"), Options{})
	assert.ErrorIs(t, err, models.ErrData)
}

func TestDetectColumnKeywords(t *testing.T) {
	tests := []struct {
		headers []string
		want    int
	}{
		{[]string{"ID", "Opinión"}, 1},
		{[]string{"Observaciones", "Texto"}, 0},
		{[]string{"fecha", "Reseña"}, 1},
		{[]string{"date", "Customer Feedback"}, 1},
		{[]string{"Contexto", "Comentarios del cliente"}, 1},
		{[]string{"Fecha de respuesta", "Respuesta"}, 1},
		{[]string{"Date of review", "Reviews"}, 1},
	}
	for _, tt := range tests {
		got, err := DetectColumn(tt.headers, nil, "")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "headers %v", tt.headers)
	}

	_, err := DetectColumn([]string{"a", "b"}, [][]string{{"1", "2"}}, "")
	assert.ErrorIs(t, err, models.ErrData)
}
