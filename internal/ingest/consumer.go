// Package ingest consumes raw transfer events from Kafka and feeds them to the live pipeline
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/metrics"
	"transfer-dashboard-backend/internal/processor"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// Feed names, also used as metric labels
const (
	FeedSimple   = "simple_transfers"
	FeedMessages = "message_events"
)

// Config holds consumer configuration
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	GroupID      string        `yaml:"groupId"`
	SimpleTopic  string        `yaml:"simpleTopic"`
	MessageTopic string        `yaml:"messageTopic"`
	MaxWait      time.Duration `yaml:"maxWait"`
	StartOffset  int64         `yaml:"startOffset"` // -1: latest, -2: earliest
}

// DefaultConfig returns default consumer configuration
func DefaultConfig() Config {
	return Config{
		Brokers:      []string{"localhost:9092"},
		GroupID:      "transfer-dashboard",
		SimpleTopic:  "axelar.transfers",
		MessageTopic: "axelar.gmp",
		MaxWait:      500 * time.Millisecond,
		StartOffset:  kafkago.LastOffset,
	}
}

// Reader is the part of a kafka reader the consumer uses
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Handler processes decoded events. processor.Processor implements it.
type Handler interface {
	HandleSimple(ctx context.Context, ev models.RawSimpleTransferEvent) (processor.Result, error)
	HandleMessage(ctx context.Context, ev models.RawMessageEvent) (processor.Result, error)
}

// Consumer reads both raw feeds and hands every event to a Handler
type Consumer struct {
	readers map[string]Reader
	handler Handler
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewConsumer creates kafka readers for both topics
func NewConsumer(cfg Config, handler Handler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, utils.NewAppError(utils.ErrorTypeConfig, "NO_BROKERS", "kafka ingest enabled without brokers", utils.ComponentIngest)
	}
	reader := func(topic string) Reader {
		return kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        cfg.MaxWait,
			StartOffset:    cfg.StartOffset,
			CommitInterval: 0,
		})
	}
	return NewConsumerWithReaders(reader(cfg.SimpleTopic), reader(cfg.MessageTopic), handler), nil
}

// NewConsumerWithReaders wires a consumer over existing readers
func NewConsumerWithReaders(simple, messages Reader, handler Handler) *Consumer {
	return &Consumer{
		readers: map[string]Reader{FeedSimple: simple, FeedMessages: messages},
		handler: handler,
		log:     utils.Component(utils.ComponentIngest),
	}
}

// DecodeSimple parses one simple transfer message
func DecodeSimple(data []byte) (models.RawSimpleTransferEvent, error) {
	var ev models.RawSimpleTransferEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal simple transfer: %w", err)
	}
	if ev.EventID == "" {
		return ev, errors.New("simple transfer without event_id")
	}
	return ev, nil
}

// DecodeMessage parses one message-passing event
func DecodeMessage(data []byte) (models.RawMessageEvent, error) {
	var ev models.RawMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal message event: %w", err)
	}
	if ev.EventID == "" {
		return ev, errors.New("message event without event_id")
	}
	return ev, nil
}

// Start consumes both feeds until ctx is cancelled, then closes the readers
func (c *Consumer) Start(ctx context.Context) {
	c.log.Info("starting kafka ingest")
	for feed, r := range c.readers {
		c.wg.Add(1)
		go func(feed string, r Reader) {
			defer c.wg.Done()
			c.consume(ctx, feed, r)
		}(feed, r)
	}
	c.wg.Wait()

	for feed, r := range c.readers {
		if err := r.Close(); err != nil {
			c.log.Warn("close reader failed", zap.String("feed", feed), zap.Error(err))
		}
	}
	c.log.Info("kafka ingest stopped")
}

func (c *Consumer) consume(ctx context.Context, feed string, r Reader) {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.log.Warn("fetch failed", zap.String("feed", feed), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		result, err := c.Process(ctx, feed, msg.Value)
		if err != nil {
			utils.LogError(c.log, err, "event not processed",
				zap.String("feed", feed), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
		}
		metrics.LiveEventsTotal.WithLabelValues(feed, string(result)).Inc()

		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("commit failed", zap.String("feed", feed), zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// Process decodes one message of feed and hands it to the handler.
// Undecodable messages come back as "invalid" so the offset still advances.
func (c *Consumer) Process(ctx context.Context, feed string, data []byte) (processor.Result, error) {
	switch feed {
	case FeedSimple:
		ev, err := DecodeSimple(data)
		if err != nil {
			return ResultInvalid, err
		}
		return c.handler.HandleSimple(ctx, ev)
	case FeedMessages:
		ev, err := DecodeMessage(data)
		if err != nil {
			return ResultInvalid, err
		}
		return c.handler.HandleMessage(ctx, ev)
	default:
		return ResultInvalid, fmt.Errorf("unknown feed %q", feed)
	}
}

// ResultInvalid marks a message that could not be decoded
const ResultInvalid processor.Result = "invalid"
