package kafka_client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct {
	queue     []*kafka.Message
	readErrs  []error
	committed []*kafka.Message
	cancel    context.CancelFunc
}

func (f *fakeConsumer) ReadMessage(time.Duration) (*kafka.Message, error) {
	if len(f.readErrs) > 0 {
		err := f.readErrs[0]
		f.readErrs = f.readErrs[1:]
		return nil, err
	}
	if len(f.queue) == 0 {
		f.cancel()
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeConsumer) CommitMessage(msg *kafka.Message) ([]kafka.TopicPartition, error) {
	f.committed = append(f.committed, msg)
	return nil, nil
}

func (f *fakeConsumer) Close() error { return nil }

func typedMessage(t *testing.T, messageType string, value any) *kafka.Message {
	t.Helper()
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	return &kafka.Message{
		Value:   raw,
		Headers: []kafka.Header{{Key: MESSAGE_TYPE_HEADER, Value: []byte(messageType)}},
	}
}

func TestSummaryConsumerHandsOverSummaries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeConsumer{
		cancel: cancel,
		readErrs: []error{
			kafka.NewError(kafka.ErrTimedOut, "timed out", false),
			errors.New("transient"),
		},
		queue: []*kafka.Message{
			typedMessage(t, MESSAGE_TYPE_RESULT, ResultMessage{RunID: "run-1"}),
			typedMessage(t, MESSAGE_TYPE_SUMMARY, SummaryMessage{RunID: "run-1", Summary: models.Summary{Total: 2}}),
			{Value: []byte("{"), Headers: []kafka.Header{{Key: MESSAGE_TYPE_HEADER, Value: []byte(MESSAGE_TYPE_SUMMARY)}}},
		},
	}
	sc := &SummaryConsumer{consumer: fake, retryDelay: time.Millisecond}

	var got []SummaryMessage
	err := sc.Consume(ctx, func(s SummaryMessage) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.Equal(t, 2, got[0].Summary.Total)
	assert.Len(t, fake.committed, 3)
}

func TestSummaryConsumerStopsOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeConsumer{
		cancel: cancel,
		queue:  []*kafka.Message{typedMessage(t, MESSAGE_TYPE_SUMMARY, SummaryMessage{RunID: "run-2"})},
	}
	sc := &SummaryConsumer{consumer: fake, retryDelay: time.Millisecond}

	err := sc.Consume(ctx, func(SummaryMessage) error { return errors.New("stdout closed") })
	require.Error(t, err)
	assert.Empty(t, fake.committed)
}

func TestSummaryConsumerGivesUpWhenBrokersAreDown(t *testing.T) {
	fake := &fakeConsumer{
		cancel:   func() {},
		readErrs: []error{kafka.NewError(kafka.ErrAllBrokersDown, "down", true)},
	}
	sc := &SummaryConsumer{consumer: fake, retryDelay: time.Millisecond}

	err := sc.Consume(context.Background(), func(SummaryMessage) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrResource)
}
