package pipeline

import (
	"context"

	"github.com/spacesedan/feedbackflow/internal/clients/kafka_client"
	"github.com/spacesedan/feedbackflow/internal/db"
)

// Sink receives the finished report of a run.
type Sink interface {
	Name() string
	Save(ctx context.Context, report *Report) error
}

type dynamoDBSink struct {
	store *db.ResultStore
}

func DynamoDBSink(store *db.ResultStore) Sink {
	return dynamoDBSink{store: store}
}

func (s dynamoDBSink) Name() string { return "dynamodb" }

func (s dynamoDBSink) Save(ctx context.Context, report *Report) error {
	return s.store.StoreRun(ctx, report.Run, report.Comments)
}

type kafkaSink struct {
	publisher *kafka_client.ResultPublisher
}

func KafkaSink(publisher *kafka_client.ResultPublisher) Sink {
	return kafkaSink{publisher: publisher}
}

func (s kafkaSink) Name() string { return "kafka" }

func (s kafkaSink) Save(ctx context.Context, report *Report) error {
	return s.publisher.PublishRun(ctx, report.Run, report.Summary)
}
