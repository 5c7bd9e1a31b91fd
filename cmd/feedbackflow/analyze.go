package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/analysis"
	"github.com/spacesedan/feedbackflow/internal/batch"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
	"github.com/spacesedan/feedbackflow/internal/pipeline"
	"github.com/spacesedan/feedbackflow/internal/reader"
	"github.com/spf13/cobra"
)

type analyzeFlags struct {
	column      string
	sheet       string
	batchSize   int
	analyzer    string
	facets      string
	concurrency int
	retries     int
	rpm         int
	threshold   float64
	noDedupe    bool
	top         int
	out         string
}

// apply lets explicitly set flags win over the environment.
func (f analyzeFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	changed := cmd.Flags().Changed
	if changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if changed("analyzer") {
		cfg.Analyzer = f.analyzer
	}
	if changed("facets") {
		cfg.Facets = f.facets
	}
	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if changed("retries") {
		cfg.MaxRetries = f.retries
	}
	if changed("rpm") {
		cfg.RequestsPerMinute = f.rpm
	}
	if changed("threshold") {
		cfg.DuplicateThreshold = f.threshold
	}
	if changed("top") {
		cfg.TopThemes = f.top
	}
	return cfg
}

func pipelineOptions(cfg config.Config, f analyzeFlags) pipeline.Options {
	breakerThreshold := cfg.BreakerThreshold
	if breakerThreshold < 0 {
		breakerThreshold = 0
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return pipeline.Options{
		Reader: reader.Options{
			Column:    f.column,
			Sheet:     f.sheet,
			MinLength: cfg.MinCommentLength,
		},
		Dedupe:             !f.noDedupe,
		DuplicateThreshold: cfg.DuplicateThreshold,
		TopN:               cfg.TopThemes,
		Batch: batch.Options{
			BatchSize:         cfg.BatchSize,
			MaxRetries:        retries,
			InitialBackoff:    cfg.InitialBackoff,
			MaxBackoff:        cfg.MaxBackoff,
			Concurrency:       cfg.Concurrency,
			RequestsPerMinute: cfg.RequestsPerMinute,
			BreakerThreshold:  uint32(breakerThreshold),
			BreakerTimeout:    cfg.BreakerTimeout,
		},
	}
}

func analyzeCMD(cfg *config.Config) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze the comments in an Excel, CSV, JSON or text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := f.apply(cmd, *cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			monitoring.Serve(ctx, settings.MetricsAddr)

			facets, err := analysis.ParseFacets(settings.Facets)
			if err != nil {
				return err
			}
			backend, err := newAnalyzer(ctx, settings, facets)
			if err != nil {
				return err
			}

			opts := pipelineOptions(settings, f)
			if c := newCache(settings); c != nil {
				opts.Batch.Cache = c.cache
				defer c.close()
			}
			opts.Batch.OnProgress = func(e models.ProgressEvent) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\rbatch %d/%d  comments %d/%d  eta %s ",
					e.BatchesCompleted, e.BatchesTotal, e.RecordsCompleted, e.RecordsTotal, e.ETA.Round(time.Second))
			}

			sinks, closeSinks := newSinks(ctx, settings)
			defer closeSinks()

			report, runErr := pipeline.New(backend, opts, sinks...).Run(ctx, args[0])
			fmt.Fprintln(cmd.ErrOrStderr())
			if report == nil {
				return runErr
			}

			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				slog.Warn("[CLI] Failed to render summary", slog.String("error", err.Error()))
			}

			if f.out != "" {
				if err := pipeline.WriteReport(f.out, report); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", f.out)
			}

			if runErr != nil {
				return runErr
			}
			if failed := len(report.Run.FailedBatches()); failed > 0 {
				slog.Warn("[CLI] Some batches failed; their comments are marked unanalyzed",
					slog.Int("failed_batches", failed))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.column, "column", "", "header of the comment column (detected when empty)")
	flags.StringVar(&f.sheet, "sheet", "", "only read this Excel sheet")
	flags.IntVar(&f.batchSize, "batch-size", config.DEFAULT_BATCH_SIZE, "comments per analyzer request")
	flags.StringVar(&f.analyzer, "analyzer", "openai", "openai, hosted or lexicon")
	flags.StringVar(&f.facets, "facets", "sentiment,themes,emotions", "what to ask the analyzer for")
	flags.IntVar(&f.concurrency, "concurrency", 1, "batches in flight")
	flags.IntVar(&f.retries, "retries", config.DEFAULT_MAX_RETRIES, "retries per batch after the first attempt")
	flags.IntVar(&f.rpm, "rpm", 0, "analyzer requests per minute (0 = unlimited)")
	flags.Float64Var(&f.threshold, "threshold", config.DEFAULT_DUPLICATE_THRESHOLD, "near-duplicate similarity threshold (1 = exact only)")
	flags.BoolVar(&f.noDedupe, "no-dedupe", false, "keep duplicate comments")
	flags.IntVar(&f.top, "top", 10, "number of top themes to report")
	flags.StringVar(&f.out, "out", "", "write the JSON report to this file")

	return cmd
}
