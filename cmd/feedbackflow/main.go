package main

import (
	"fmt"
	"os"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/logging"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "feedbackflow",
		Short:         "Sentiment, theme and emotion analysis for customer feedback",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env := os.Getenv("APP_ENV")
			if env == "" {
				env = "dev"
			}
			config.LoadEnv(env)
			cfg = config.Load()
			logging.InitLogger(cfg.LogLevel)
		},
	}

	root.AddCommand(analyzeCMD(&cfg), inspectCMD(&cfg), watchCMD(&cfg))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, models.UserMessage(err))
		os.Exit(1)
	}
}
