package reader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/xuri/excelize/v2"
)

const DEFAULT_MIN_LENGTH = 3

type Options struct {
	// Column forces the comment column by header name.
	Column string
	// Sheet limits Excel reading to a single sheet.
	Sheet     string
	MinLength int
}

type Result struct {
	Comments []models.Comment
	Format   string
	// Column is the header of the detected comment column, empty for plain text.
	Column string
}

// Invalid counts comments marked invalid at read time.
func (r *Result) Invalid() int {
	n := 0
	for _, c := range r.Comments {
		if !c.Valid {
			n++
		}
	}
	return n
}

func ReadFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", models.ErrData, path, err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path), opts)
}

// Read parses comments from r, choosing the format from the extension of name.
func Read(r io.Reader, name string, opts Options) (*Result, error) {
	if opts.MinLength <= 0 {
		opts.MinLength = DEFAULT_MIN_LENGTH
	}

	var res *Result
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		res, err = readExcel(r, name, opts)
	case ".csv":
		res, err = readCSV(r, name, opts)
	case ".json":
		res, err = readJSON(r, name, opts)
	default:
		res, err = readText(r, name, opts)
	}
	if err != nil {
		return nil, err
	}

	for i := range res.Comments {
		validate(&res.Comments[i], opts.MinLength)
	}

	slog.Info("[Reader] Comments loaded",
		slog.String("source", name),
		slog.String("format", res.Format),
		slog.String("column", res.Column),
		slog.Int("comments", len(res.Comments)),
		slog.Int("invalid", res.Invalid()))

	if len(res.Comments) == 0 {
		return nil, fmt.Errorf("%w: %s contains no comments", models.ErrData, name)
	}
	return res, nil
}

func readExcel(r io.Reader, name string, opts Options) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", models.ErrData, err)
	}
	defer f.Close()

	res := &Result{Format: "excel"}
	for _, sheet := range f.GetSheetList() {
		if opts.Sheet != "" && !strings.EqualFold(sheet, opts.Sheet) {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read sheet %s: %v", models.ErrData, sheet, err)
		}
		comments, column, err := fromTable(rows, models.CommentOrigin{Source: name, Sheet: sheet}, opts.Column)
		if err != nil {
			slog.Warn("[Reader] Skipping sheet",
				slog.String("sheet", sheet),
				slog.String("error", err.Error()))
			continue
		}
		if res.Column == "" {
			res.Column = column
		}
		res.Comments = append(res.Comments, comments...)
	}
	if len(res.Comments) == 0 {
		return nil, fmt.Errorf("%w: no sheet in %s has a comment column", models.ErrData, name)
	}
	return res, nil
}

func readCSV(r io.Reader, name string, opts Options) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", models.ErrData, name, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed csv: %v", models.ErrData, err)
	}

	comments, column, err := fromTable(rows, models.CommentOrigin{Source: name}, opts.Column)
	if err != nil {
		return nil, err
	}
	return &Result{Comments: comments, Format: "csv", Column: column}, nil
}

// sniffDelimiter looks at the header line; spreadsheets exported with a
// Spanish locale use ';'.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// fromTable treats the first non-empty row as the header.
func fromTable(rows [][]string, origin models.CommentOrigin, explicit string) ([]models.Comment, string, error) {
	headerRow := -1
	for i, row := range rows {
		if !emptyRow(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, "", fmt.Errorf("%w: table is empty", models.ErrData)
	}

	headers := rows[headerRow]
	data := rows[headerRow+1:]
	col, err := DetectColumn(headers, data, explicit)
	if err != nil {
		return nil, "", err
	}

	origin.Column = strings.TrimSpace(headers[col])
	var comments []models.Comment
	for i, row := range data {
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		o := origin
		o.Row = headerRow + i + 2
		comments = append(comments, models.NewComment(o, row[col]))
	}
	return comments, origin.Column, nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func readJSON(r io.Reader, name string, opts Options) (*Result, error) {
	var doc any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", models.ErrData, err)
	}

	items, err := findArray(doc)
	if err != nil {
		return nil, err
	}

	res := &Result{Format: "json"}
	origin := models.CommentOrigin{Source: name}

	if allStrings(items) {
		for i, item := range items {
			text, _ := item.(string)
			if strings.TrimSpace(text) == "" {
				continue
			}
			o := origin
			o.Row = i + 1
			res.Comments = append(res.Comments, models.NewComment(o, text))
		}
		return res, nil
	}

	headers, rows := objectsToTable(items)
	comments, column, err := fromTable(append([][]string{headers}, rows...), origin, opts.Column)
	if err != nil {
		return nil, err
	}
	// fromTable numbers rows like a spreadsheet; JSON rows are 1-based items.
	for i := range comments {
		comments[i].Origin.Row--
		comments[i].ID = models.CommentID(comments[i].Origin, comments[i].Text)
	}
	res.Comments = comments
	res.Column = column
	return res, nil
}

// findArray returns the comment list inside a JSON document: the document
// itself, or the first array value of an object, preferring keyword keys.
func findArray(doc any) ([]any, error) {
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sort.SliceStable(keys, func(i, j int) bool {
			return isKeyword(keys[i]) && !isKeyword(keys[j])
		})
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				return arr, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: json holds no list of comments", models.ErrData)
}

func isKeyword(s string) bool {
	return headerMatches(s)
}

func allStrings(items []any) bool {
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

func objectsToTable(items []any) ([]string, [][]string) {
	seen := map[string]struct{}{}
	var headers []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			if _, dup := seen[k]; !dup {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			headers = append(headers, k)
		}
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		row := make([]string, len(headers))
		for i, h := range headers {
			switch val := obj[h].(type) {
			case nil:
			case string:
				row[i] = val
			default:
				row[i] = fmt.Sprint(val)
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func readText(r io.Reader, name string, _ Options) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	res := &Result{Format: "text"}
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if text == "" {
			continue
		}
		res.Comments = append(res.Comments, models.NewComment(models.CommentOrigin{Source: name, Row: line}, text))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", models.ErrData, name, err)
	}
	return res, nil
}
