package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// Writer is the part of a kafka writer the publisher uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes raw events to the feed topics. It is the producing side of Consumer,
// used to replay fixtures into a running pipeline.
type Publisher struct {
	writers   map[string]Writer
	batchSize int
	log       *zap.Logger
}

// NewPublisher creates kafka writers for both topics
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, utils.NewAppError(utils.ErrorTypeConfig, "NO_BROKERS", "publisher needs kafka brokers", utils.ComponentIngest)
	}
	writer := func(topic string) Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{}, // same event id, same partition
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return NewPublisherWithWriters(writer(cfg.SimpleTopic), writer(cfg.MessageTopic)), nil
}

// NewPublisherWithWriters wires a publisher over existing writers
func NewPublisherWithWriters(simple, messages Writer) *Publisher {
	return &Publisher{
		writers:   map[string]Writer{FeedSimple: simple, FeedMessages: messages},
		batchSize: 500,
		log:       utils.Component(utils.ComponentIngest),
	}
}

// PublishSimple writes simple transfer events keyed by event id
func (p *Publisher) PublishSimple(ctx context.Context, events []models.RawSimpleTransferEvent) (int, error) {
	msgs := make([]kafkago.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return 0, fmt.Errorf("marshal simple transfer %s: %w", ev.EventID, err)
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(ev.EventID), Value: value})
	}
	return p.write(ctx, FeedSimple, msgs)
}

// PublishMessages writes message-passing events keyed by event id
func (p *Publisher) PublishMessages(ctx context.Context, events []models.RawMessageEvent) (int, error) {
	msgs := make([]kafkago.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return 0, fmt.Errorf("marshal message event %s: %w", ev.EventID, err)
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(ev.EventID), Value: value})
	}
	return p.write(ctx, FeedMessages, msgs)
}

func (p *Publisher) write(ctx context.Context, feed string, msgs []kafkago.Message) (int, error) {
	written := 0
	for len(msgs) > 0 {
		n := min(p.batchSize, len(msgs))
		if err := p.writers[feed].WriteMessages(ctx, msgs[:n]...); err != nil {
			return written, utils.WrapError(err, utils.ErrorTypeDataUnavailable, "PUBLISH_FAILED",
				fmt.Sprintf("failed to publish to %s", feed), utils.ComponentIngest)
		}
		written += n
		msgs = msgs[n:]
	}
	p.log.Debug("published", zap.String("feed", feed), zap.Int("messages", written))
	return written, nil
}

// Close flushes and closes both writers
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
