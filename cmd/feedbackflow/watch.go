package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/clients/kafka_client"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spf13/cobra"
)

func watchCMD(cfg *config.Config) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print run summaries as they are published to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.KafkaBroker == "" {
				return fmt.Errorf("%w: KAFKA_BROKER is not set", models.ErrResource)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer, err := kafka_client.NewSummaryConsumer(kafka_client.KafkaConfig{
				Broker:  cfg.KafkaBroker,
				Topic:   cfg.KafkaResultsTopic,
				GroupID: group,
			})
			if err != nil {
				return err
			}
			defer consumer.Close()

			out := cmd.OutOrStdout()
			return consumer.Consume(ctx, func(m kafka_client.SummaryMessage) error {
				s := m.Summary
				_, err := fmt.Fprintf(out, "%s  run %s (%s): %d/%d analyzed, %s positive, %s neutral, %s negative\n",
					time.Unix(m.FinishedAt, 0).Format(time.DateTime), m.RunID, m.Analyzer, s.Analyzed, s.Total,
					pct(s.Percentages[models.SentimentPositive]),
					pct(s.Percentages[models.SentimentNeutral]),
					pct(s.Percentages[models.SentimentNegative]))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "consumer group id (default feedbackflow-watch)")
	return cmd
}
