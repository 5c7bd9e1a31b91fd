package kafka_client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	messages   []*kafka.Message
	failOn     int
	commitErrs int
	began      int
	committed  int
	aborted    int
}

func (f *fakeProducer) BeginTransaction() error { f.began++; return nil }

func (f *fakeProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	if f.failOn > 0 && len(f.messages)+1 == f.failOn {
		return errors.New("queue full")
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) CommitTransaction(context.Context) error {
	if f.commitErrs > 0 {
		f.commitErrs--
		return errors.New("coordinator moved")
	}
	f.committed++
	return nil
}

func (f *fakeProducer) AbortTransaction(context.Context) error { f.aborted++; return nil }
func (f *fakeProducer) Flush(int) int                          { return 0 }
func (f *fakeProducer) Close()                                 {}

func testRun() *models.Run {
	return &models.Run{
		ID:       "run-1",
		Analyzer: "openai",
		Results: []models.AnalysisResult{
			{CommentID: "c0", Status: models.StatusAnalyzed, Sentiment: models.SentimentPositive},
			models.FailedResult("c1", 1, nil),
		},
	}
}

func TestPublishRun(t *testing.T) {
	fake := &fakeProducer{commitErrs: 1}
	pub := &ResultPublisher{producer: fake, topic: KAFKA_TOPIC_ANALYSIS_RESULTS}

	err := pub.PublishRun(context.Background(), testRun(), models.Summary{Total: 2, Analyzed: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.began)
	assert.Equal(t, 1, fake.committed)
	assert.Zero(t, fake.aborted)
	require.Len(t, fake.messages, 3)

	assert.Equal(t, "c0", string(fake.messages[0].Key))
	assert.Equal(t, MESSAGE_TYPE_RESULT, string(fake.messages[0].Headers[0].Value))
	var rm ResultMessage
	require.NoError(t, json.Unmarshal(fake.messages[1].Value, &rm))
	assert.Equal(t, "run-1", rm.RunID)
	assert.Equal(t, models.StatusFailed, rm.Result.Status)

	last := fake.messages[2]
	assert.Equal(t, "run-1", string(last.Key))
	assert.Equal(t, MESSAGE_TYPE_SUMMARY, string(last.Headers[0].Value))
	assert.Equal(t, KAFKA_TOPIC_ANALYSIS_RESULTS, *last.TopicPartition.Topic)
}

func TestPublishRunAbortsOnProduceFailure(t *testing.T) {
	fake := &fakeProducer{failOn: 2}
	pub := &ResultPublisher{producer: fake, topic: "t"}

	err := pub.PublishRun(context.Background(), testRun(), models.Summary{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrResource)
	assert.Equal(t, 1, fake.aborted)
	assert.Zero(t, fake.committed)
}

func TestKafkaConfigDefaults(t *testing.T) {
	cfg := KafkaConfig{}.withDefaults()
	assert.Equal(t, "localhost:29092", cfg.Broker)
	assert.Equal(t, KAFKA_TOPIC_ANALYSIS_RESULTS, cfg.Topic)
	assert.NotEmpty(t, cfg.TransactionalID)
}
