package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/feedbackflow/internal/aggregate"
	"github.com/spacesedan/feedbackflow/internal/analysis"
	"github.com/spacesedan/feedbackflow/internal/batch"
	"github.com/spacesedan/feedbackflow/internal/cleaning"
	"github.com/spacesedan/feedbackflow/internal/language"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/reader"
)

const SINK_TIMEOUT = 30 * time.Second

type Options struct {
	Reader reader.Options
	// Dedupe removes exact and near duplicates before analysis.
	Dedupe             bool
	DuplicateThreshold float64
	Batch              batch.Options
	TopN               int
}

type Pipeline struct {
	analyzer analysis.Analyzer
	opts     Options
	sinks    []Sink
}

func New(analyzer analysis.Analyzer, opts Options, sinks ...Sink) *Pipeline {
	return &Pipeline{analyzer: analyzer, opts: opts, sinks: sinks}
}

// Prepared holds comments that passed reading, cleaning and language
// detection, ready to be analyzed.
type Prepared struct {
	Source    string
	Read      *reader.Result
	Comments  []models.Comment
	Removed   []models.Comment
	Clean     cleaning.Report
	Languages map[models.Language]int
}

// Prepare runs every stage that does not call an analyzer.
func Prepare(path string, opts Options) (*Prepared, error) {
	read, err := reader.ReadFile(path, opts.Reader)
	if err != nil {
		return nil, err
	}

	p := &Prepared{Source: path, Read: read}
	if opts.Dedupe {
		p.Comments, p.Removed, p.Clean = cleaning.NewCleaner(opts.DuplicateThreshold).Clean(read.Comments)
	} else {
		p.Clean = cleaning.Report{Input: len(read.Comments)}
		for _, c := range read.Comments {
			if !c.Valid {
				p.Clean.Invalid++
				continue
			}
			p.Comments = append(p.Comments, c)
		}
		p.Clean.Kept = len(p.Comments)
	}

	p.Languages = language.NewDetector().Annotate(p.Comments)
	return p, nil
}

// Run reads path, analyzes every valid comment and hands the report to the
// sinks. A cancelled ctx still yields a report of whatever finished, together
// with the context error.
func (pl *Pipeline) Run(ctx context.Context, path string) (*Report, error) {
	start := time.Now()
	prepared, err := Prepare(path, pl.opts)
	if err != nil {
		return nil, err
	}
	if len(prepared.Comments) == 0 {
		return nil, fmt.Errorf("%w: %s has no valid comments to analyze", models.ErrData, path)
	}

	slog.Info("[Pipeline] Input prepared",
		slog.String("source", path),
		slog.String("column", prepared.Read.Column),
		slog.Int("comments", len(prepared.Comments)),
		slog.Duration("elapsed", time.Since(start)))

	run, runErr := batch.NewProcessor(pl.analyzer, pl.opts.Batch).Process(ctx, prepared.Comments)
	summary := aggregate.NewAggregator(pl.opts.TopN).Aggregate(run.Results, prepared.Comments)

	report := NewReport(prepared, run, summary)
	pl.save(ctx, report)

	if runErr != nil {
		return report, fmt.Errorf("analysis interrupted: %w", runErr)
	}
	return report, nil
}

// save never fails the run; sink errors are logged and kept in the report.
func (pl *Pipeline) save(ctx context.Context, report *Report) {
	if len(pl.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SINK_TIMEOUT)
	defer cancel()

	for _, sink := range pl.sinks {
		if err := sink.Save(ctx, report); err != nil {
			slog.Error("[Pipeline] Failed to save results",
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()))
			report.SinkErrors = append(report.SinkErrors, fmt.Sprintf("%s: %v", sink.Name(), err))
			continue
		}
		slog.Info("[Pipeline] Results saved", slog.String("sink", sink.Name()))
	}
}
