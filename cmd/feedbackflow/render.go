package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spacesedan/feedbackflow/internal/cleaning"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/pipeline"
)

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	if err := table.Append(header); err != nil {
		return fmt.Errorf("failed to append header row: %w", err)
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func themeRows(themes []models.ThemeCount) [][]string {
	rows := make([][]string, 0, len(themes))
	for _, t := range themes {
		rows = append(rows, []string{t.Theme, strconv.Itoa(t.Count)})
	}
	return rows
}

func languageRows(langs map[models.Language]int) [][]string {
	keys := make([]models.Language, 0, len(langs))
	for l := range langs {
		keys = append(keys, l)
	}
	sort.Slice(keys, func(i, j int) bool {
		if langs[keys[i]] != langs[keys[j]] {
			return langs[keys[i]] > langs[keys[j]]
		}
		return keys[i] < keys[j]
	})

	rows := make([][]string, 0, len(keys))
	for _, l := range keys {
		rows = append(rows, []string{string(l), strconv.Itoa(langs[l])})
	}
	return rows
}

func cleanRows(r cleaning.Report) [][]string {
	return [][]string{
		{"input", strconv.Itoa(r.Input)},
		{"kept", strconv.Itoa(r.Kept)},
		{"invalid", strconv.Itoa(r.Invalid)},
		{"exact duplicates", strconv.Itoa(r.Exact)},
		{"near duplicates", strconv.Itoa(r.Near)},
	}
}

func printReport(w io.Writer, report *pipeline.Report) error {
	s := report.Summary

	fmt.Fprintf(w, "Run %s (%s) on %s\n", report.RunID, report.Analyzer, report.Source)
	fmt.Fprintf(w, "Analyzed %d of %d comments, %d from cache, in %s\n\n",
		s.Analyzed, s.Total, report.CacheHits, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	var dist [][]string
	for _, label := range models.Sentiments {
		dist = append(dist, []string{string(label), strconv.Itoa(s.Distribution[label]), pct(s.Percentages[label])})
	}
	dist = append(dist, []string{"unanalyzed", strconv.Itoa(s.Unanalyzed), ""})
	if err := renderTable(w, []string{"Sentiment", "Count", "Share"}, dist); err != nil {
		return err
	}
	fmt.Fprintf(w, "Average score %.2f, average confidence %.2f, %d low-confidence results\n\n",
		s.AverageScore, s.AverageConfidence, s.LowConfidence)

	if len(s.TopThemes) > 0 {
		if err := renderTable(w, []string{"Theme", "Mentions"}, themeRows(s.TopThemes)); err != nil {
			return err
		}
	}

	if len(s.EmotionAverages) > 0 {
		names := make([]string, 0, len(s.EmotionAverages))
		for name := range s.EmotionAverages {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, strconv.FormatFloat(s.EmotionAverages[name], 'f', 2, 64)})
		}
		if err := renderTable(w, []string{"Emotion", "Average"}, rows); err != nil {
			return err
		}
	}

	if len(s.Languages) > 0 {
		if err := renderTable(w, []string{"Language", "Comments"}, languageRows(s.Languages)); err != nil {
			return err
		}
	}

	if failed := report.Run.FailedBatches(); len(failed) > 0 {
		rows := make([][]string, 0, len(failed))
		for _, o := range failed {
			rows = append(rows, []string{
				strconv.Itoa(o.Index),
				fmt.Sprintf("%d-%d", o.Start, o.Start+o.Size-1),
				strconv.Itoa(o.Attempts),
				o.Error,
			})
		}
		if err := renderTable(w, []string{"Failed batch", "Comments", "Attempts", "Error"}, rows); err != nil {
			return err
		}
	}

	if len(s.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range s.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}

	for _, e := range report.SinkErrors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
	return nil
}

func printInspection(w io.Writer, p *pipeline.Prepared) error {
	column := p.Read.Column
	if column == "" {
		column = "(whole line)"
	}
	fmt.Fprintf(w, "%s: %s, column %s\n\n", p.Source, p.Read.Format, column)

	if err := renderTable(w, []string{"Cleaning", "Comments"}, cleanRows(p.Clean)); err != nil {
		return err
	}
	return renderTable(w, []string{"Language", "Comments"}, languageRows(p.Languages))
}
