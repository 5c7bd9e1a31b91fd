package main

import (
	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/pipeline"
	"github.com/spacesedan/feedbackflow/internal/reader"
	"github.com/spf13/cobra"
)

func inspectCMD(cfg *config.Config) *cobra.Command {
	var (
		column    string
		sheet     string
		noDedupe  bool
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Read and clean a file without analyzing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.DuplicateThreshold
			}
			prepared, err := pipeline.Prepare(args[0], pipeline.Options{
				Reader: reader.Options{
					Column:    column,
					Sheet:     sheet,
					MinLength: cfg.MinCommentLength,
				},
				Dedupe:             !noDedupe,
				DuplicateThreshold: threshold,
			})
			if err != nil {
				return err
			}
			return printInspection(cmd.OutOrStdout(), prepared)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&column, "column", "", "header of the comment column (detected when empty)")
	flags.StringVar(&sheet, "sheet", "", "only read this Excel sheet")
	flags.BoolVar(&noDedupe, "no-dedupe", false, "keep duplicate comments")
	flags.Float64Var(&threshold, "threshold", config.DEFAULT_DUPLICATE_THRESHOLD, "near-duplicate similarity threshold (1 = exact only)")

	return cmd
}
