package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spacesedan/feedbackflow/internal/cleaning"
	"github.com/spacesedan/feedbackflow/internal/models"
)

type ReportRow struct {
	Index      int                 `json:"index"`
	CommentID  string              `json:"comment_id"`
	Text       string              `json:"text"`
	Language   models.Language     `json:"language"`
	Sheet      string              `json:"sheet,omitempty"`
	Row        int                 `json:"row"`
	Status     models.ResultStatus `json:"status"`
	Sentiment  models.Sentiment    `json:"sentiment,omitempty"`
	Score      float64             `json:"score"`
	Confidence float64             `json:"confidence"`
	Themes     []string            `json:"themes,omitempty"`
	Emotions   map[string]float64  `json:"emotions,omitempty"`
	Source     string              `json:"source,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type Report struct {
	RunID      string                  `json:"run_id"`
	Analyzer   string                  `json:"analyzer"`
	Source     string                  `json:"source"`
	Format     string                  `json:"format"`
	Column     string                  `json:"column,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	CacheHits  int                     `json:"cache_hits"`
	Clean      cleaning.Report         `json:"clean"`
	Languages  map[models.Language]int `json:"languages"`
	Summary    models.Summary          `json:"summary"`
	Ledger     []models.BatchOutcome   `json:"ledger"`
	Rows       []ReportRow             `json:"results"`
	SinkErrors []string                `json:"sink_errors,omitempty"`

	Run      *models.Run      `json:"-"`
	Comments []models.Comment `json:"-"`
}

func NewReport(p *Prepared, run *models.Run, summary models.Summary) *Report {
	report := &Report{
		RunID:      run.ID,
		Analyzer:   run.Analyzer,
		Source:     p.Source,
		Format:     p.Read.Format,
		Column:     p.Read.Column,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		CacheHits:  run.CacheHits,
		Clean:      p.Clean,
		Languages:  p.Languages,
		Summary:    summary,
		Ledger:     run.Ledger,
		Rows:       make([]ReportRow, 0, len(run.Results)),
		Run:        run,
		Comments:   p.Comments,
	}

	for i, r := range run.Results {
		c := p.Comments[i]
		report.Rows = append(report.Rows, ReportRow{
			Index:      r.Index,
			CommentID:  r.CommentID,
			Text:       c.Text,
			Language:   c.Language,
			Sheet:      c.Origin.Sheet,
			Row:        c.Origin.Row,
			Status:     r.Status,
			Sentiment:  r.Sentiment,
			Score:      r.Score,
			Confidence: r.Confidence,
			Themes:     r.Themes,
			Emotions:   r.Emotions,
			Source:     r.Source,
			Error:      r.Error,
		})
	}
	return report
}

func WriteReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode report: %v", models.ErrProcessing, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write report: %v", models.ErrResource, err)
	}
	return nil
}
