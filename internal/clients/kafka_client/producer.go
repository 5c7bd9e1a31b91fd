package kafka_client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbackflow/internal/models"
)

// transactionalProducer is the subset of *kafka.Producer used here.
type transactionalProducer interface {
	BeginTransaction() error
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	Flush(timeoutMs int) int
	Close()
}

type ResultMessage struct {
	RunID  string                `json:"run_id"`
	Result models.AnalysisResult `json:"result"`
}

type SummaryMessage struct {
	RunID      string         `json:"run_id"`
	Analyzer   string         `json:"analyzer"`
	StartedAt  int64          `json:"started_at"`
	FinishedAt int64          `json:"finished_at"`
	Summary    models.Summary `json:"summary"`
}

type ResultPublisher struct {
	producer transactionalProducer
	topic    string
}

func NewResultPublisher(ctx context.Context, cfg KafkaConfig) (*ResultPublisher, error) {
	cfg = cfg.withDefaults()
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("topic", cfg.Topic))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     cfg.Broker,
		"security.protocol":                     "PLAINTEXT",
		"api.version.request":                   "true",
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
		"transactional.id":                      cfg.TransactionalID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create producer: %v", models.ErrResource, err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: failed to init transactions: %v", models.ErrResource, err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &ResultPublisher{producer: p, topic: cfg.Topic}, nil
}

func (p *ResultPublisher) Close() {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(FLUSH_TIMEOUT_MS); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// PublishRun sends every result of the run and then its summary inside one
// transaction, so consumers see the whole run or none of it.
func (p *ResultPublisher) PublishRun(ctx context.Context, run *models.Run, summary models.Summary) error {
	if err := p.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", models.ErrResource, err)
	}

	for _, result := range run.Results {
		value, err := json.Marshal(ResultMessage{RunID: run.ID, Result: result})
		if err != nil {
			return p.abort(ctx, fmt.Errorf("%w: %v", models.ErrProcessing, err))
		}
		if err := p.produce(result.CommentID, MESSAGE_TYPE_RESULT, value); err != nil {
			return p.abort(ctx, err)
		}
	}

	value, err := json.Marshal(SummaryMessage{
		RunID:      run.ID,
		Analyzer:   run.Analyzer,
		StartedAt:  run.StartedAt.Unix(),
		FinishedAt: run.FinishedAt.Unix(),
		Summary:    summary,
	})
	if err != nil {
		return p.abort(ctx, fmt.Errorf("%w: %v", models.ErrProcessing, err))
	}
	if err := p.produce(run.ID, MESSAGE_TYPE_SUMMARY, value); err != nil {
		return p.abort(ctx, err)
	}

	var commitErr error
	for i := 0; i < MAX_RETRIES; i++ {
		commitErr = p.producer.CommitTransaction(ctx)
		if commitErr == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
	}
	if commitErr != nil {
		return p.abort(ctx, fmt.Errorf("%w: failed to commit transaction after %d retries: %v", models.ErrResource, MAX_RETRIES, commitErr))
	}

	slog.Info("[KafkaClient] Published run to Kafka transactionally",
		slog.String("topic", p.topic),
		slog.String("run_id", run.ID),
		slog.Int("results", len(run.Results)))
	return nil
}

func (p *ResultPublisher) produce(key, messageType string, value []byte) error {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
		Headers:        []kafka.Header{{Key: MESSAGE_TYPE_HEADER, Value: []byte(messageType)}},
	}

	var err error
	for i := 0; i < MAX_RETRIES; i++ {
		err = p.producer.Produce(msg, nil)
		if err == nil {
			return nil
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	return fmt.Errorf("%w: failed to produce message: %v", models.ErrResource, err)
}

func (p *ResultPublisher) abort(ctx context.Context, cause error) error {
	if abortErr := p.producer.AbortTransaction(ctx); abortErr != nil {
		return fmt.Errorf("%w (abort also failed: %v)", cause, abortErr)
	}
	return cause
}
