package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-dashboard-backend/models"
)

type fakeWriter struct {
	batches [][]kafkago.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisherBatchesAndKeys(t *testing.T) {
	simple, msgs := &fakeWriter{}, &fakeWriter{}
	p := NewPublisherWithWriters(simple, msgs)
	p.batchSize = 2

	events := make([]models.RawSimpleTransferEvent, 3)
	for i := range events {
		events[i] = models.RawSimpleTransferEvent{
			Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), SourceChain: "ethereum",
			DestinationChain: "filecoin", EventID: string(rune('a' + i)), Status: models.StatusExecuted,
		}
	}

	n, err := p.PublishSimple(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, simple.batches, 2)
	assert.Len(t, simple.batches[0], 2)
	assert.Equal(t, "c", string(simple.batches[1][0].Key))
	assert.Empty(t, msgs.batches)

	// what the publisher writes, the consumer reads back
	ev, err := DecodeSimple(simple.batches[0][1].Value)
	require.NoError(t, err)
	assert.Equal(t, "b", ev.EventID)
	assert.Equal(t, "filecoin", ev.DestinationChain)

	require.NoError(t, p.Close())
	assert.True(t, simple.closed)
	assert.True(t, msgs.closed)
}

func TestPublisherReportsWriteFailure(t *testing.T) {
	msgs := &fakeWriter{err: errors.New("broker unreachable")}
	p := NewPublisherWithWriters(&fakeWriter{}, msgs)

	n, err := p.PublishMessages(context.Background(), []models.RawMessageEvent{{EventID: "1"}})
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(Config{})
	assert.Error(t, err)
}
