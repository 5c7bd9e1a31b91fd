package kafka_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const (
	POLL_TIMEOUT = 500 * time.Millisecond
	RETRY_DELAY  = 2 * time.Second
)

// messageConsumer is the subset of *kafka.Consumer used here.
type messageConsumer interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitMessage(msg *kafka.Message) ([]kafka.TopicPartition, error)
	Close() error
}

// SummaryConsumer follows the results topic and hands over run summaries.
// Per-comment result messages are committed and skipped.
type SummaryConsumer struct {
	consumer   messageConsumer
	retryDelay time.Duration
}

func NewSummaryConsumer(cfg KafkaConfig) (*SummaryConsumer, error) {
	cfg = cfg.withDefaults()
	slog.Info("[KafkaClient] Initializing Kafka Consumer...",
		slog.String("broker", cfg.Broker),
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", cfg.Topic))

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Broker,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create consumer: %v", models.ErrResource, err)
	}

	if err := c.SubscribeTopics([]string{cfg.Topic}, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: failed to subscribe to %s: %v", models.ErrResource, cfg.Topic, err)
	}

	slog.Info("[KafkaClient] Kafka Consumer initialized successfully")
	return &SummaryConsumer{consumer: c, retryDelay: RETRY_DELAY}, nil
}

func (sc *SummaryConsumer) Close() {
	if err := sc.consumer.Close(); err != nil {
		slog.Warn("[KafkaClient] Failed to close consumer", slog.String("error", err.Error()))
	}
}

// Consume calls handle for every run summary until ctx is done. A message is
// committed only after handle accepts it; a summary that cannot be decoded
// is logged and committed so it does not block the partition.
func (sc *SummaryConsumer) Consume(ctx context.Context, handle func(SummaryMessage) error) error {
	for {
		msg, err := sc.next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if messageType(msg) == MESSAGE_TYPE_SUMMARY {
			var summary SummaryMessage
			if err := json.Unmarshal(msg.Value, &summary); err != nil {
				slog.Warn("[KafkaConsumer] Skipping undecodable summary",
					slog.String("key", string(msg.Key)),
					slog.String("error", err.Error()))
			} else if err := handle(summary); err != nil {
				return err
			}
		}

		if err := sc.commit(ctx, msg); err != nil {
			return err
		}
	}
}

func messageType(msg *kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == MESSAGE_TYPE_HEADER {
			return string(h.Value)
		}
	}
	return ""
}

func (sc *SummaryConsumer) next(ctx context.Context) (*kafka.Message, error) {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			slog.Warn("[KafkaIterator] Context cancelled, stopping iterator")
			return nil, err
		}

		msg, err := sc.consumer.ReadMessage(POLL_TIMEOUT)
		if err == nil {
			return msg, nil
		}

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) {
			switch kafkaErr.Code() {
			case kafka.ErrTimedOut:
				continue
			case kafka.ErrAllBrokersDown:
				slog.Error("[KafkaIterator] All Kafka brokers are down. Aborting")
				return nil, fmt.Errorf("%w: %v", models.ErrResource, err)
			}
		}

		failures++
		slog.Warn("[KafkaIterator] Failed to read message, retrying...",
			slog.Int("attempt", failures),
			slog.Int("max_retries", MAX_RETRIES),
			slog.String("error", err.Error()))
		if failures >= MAX_RETRIES {
			return nil, fmt.Errorf("%w: failed to read message after %d retries: %v", models.ErrResource, MAX_RETRIES, err)
		}
		if !sleepCtx(ctx, sc.retryDelay) {
			return nil, ctx.Err()
		}
	}
}

func (sc *SummaryConsumer) commit(ctx context.Context, msg *kafka.Message) error {
	var err error
	for i := 0; i < MAX_RETRIES; i++ {
		if _, err = sc.consumer.CommitMessage(msg); err == nil {
			return nil
		}
		slog.Warn("[KafkaCommitHandler] Failed to commit offset, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()),
			slog.String("partition", fmt.Sprintf("%d", msg.TopicPartition.Partition)),
			slog.String("offset", msg.TopicPartition.Offset.String()))

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) && kafkaErr.Code() == kafka.ErrAllBrokersDown {
			break
		}
		if !sleepCtx(ctx, sc.retryDelay) {
			return nil
		}
	}
	return fmt.Errorf("%w: failed to commit message after %d retries: %v", models.ErrResource, MAX_RETRIES, err)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
