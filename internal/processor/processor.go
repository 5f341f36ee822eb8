package processor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/internal/metrics"
	"transfer-dashboard-backend/internal/normalize"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
	"transfer-dashboard-backend/storage"
)

// Result is what happened to one raw event
type Result string

const (
	ResultAccepted  Result = "accepted"
	ResultFiltered  Result = "filtered"
	ResultDuplicate Result = "duplicate"
	ResultDropped   Result = "dropped"
)

// Config holds processor configuration
type Config struct {
	MaxRetries   int                      `yaml:"maxRetries"`   // sink write attempts (default: 3)
	RetryBackoff time.Duration            `yaml:"retryBackoff"` // between attempts (default: 100ms)
	Backpressure utils.BackpressureConfig `yaml:"backpressure"`
}

// DefaultConfig returns default processor configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		Backpressure: utils.DefaultBackpressureConfig(),
	}
}

// Processor turns raw stream events into live transfers: it keeps only final events
// touching the chain of interest, lands them in the sink and forwards new ones downstream.
type Processor struct {
	config Config
	chain  string
	sink   storage.Sink
	out    chan<- models.NormalizedTransfer
	stats  utils.BackpressureStats
	log    *zap.Logger
}

// NewProcessor creates a new processor. A nil sink skips persistence.
func NewProcessor(config Config, chain string, sink storage.Sink, out chan<- models.NormalizedTransfer) *Processor {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	return &Processor{
		config: config,
		chain:  models.NormalizeChain(chain),
		sink:   sink,
		out:    out,
		log:    utils.Component(utils.ComponentIngest),
	}
}

// HandleSimple processes one simple transfer event
func (p *Processor) HandleSimple(ctx context.Context, ev models.RawSimpleTransferEvent) (Result, error) {
	if !filter.IsFinal(ev.Status, ev.SimplifiedStatus) {
		return ResultFiltered, nil
	}
	t, degraded := normalize.NormalizeSimple(ev)
	return p.handle(ctx, t, degraded, func(ctx context.Context) (int, error) {
		return p.sink.AppendSimple(ctx, []models.RawSimpleTransferEvent{ev})
	})
}

// HandleMessage processes one message-passing event
func (p *Processor) HandleMessage(ctx context.Context, ev models.RawMessageEvent) (Result, error) {
	if !filter.IsFinal(ev.Status, ev.SimplifiedStatus) {
		return ResultFiltered, nil
	}
	t, degraded := normalize.NormalizeMessage(ev)
	return p.handle(ctx, t, degraded, func(ctx context.Context) (int, error) {
		return p.sink.AppendMessages(ctx, []models.RawMessageEvent{ev})
	})
}

func (p *Processor) handle(ctx context.Context, t models.NormalizedTransfer, degraded []string, persist func(context.Context) (int, error)) (Result, error) {
	if !filter.TouchesChain(&t, p.chain) {
		return ResultFiltered, nil
	}
	if len(degraded) > 0 {
		counts := make(map[string]int, len(degraded))
		for _, field := range degraded {
			counts[field]++
		}
		metrics.RecordDegraded(counts)
	}

	if p.sink != nil {
		added, err := p.persist(ctx, persist)
		if err != nil {
			return ResultDropped, err
		}
		if added == 0 {
			return ResultDuplicate, nil
		}
	}

	if !utils.SendWithBackpressure(ctx, p.out, t, p.config.Backpressure, &p.stats) {
		p.log.Warn("live channel full, transfer not forwarded", zap.String("id", t.Key()))
		return ResultDropped, nil
	}
	return ResultAccepted, nil
}

func (p *Processor) persist(ctx context.Context, persist func(context.Context) (int, error)) (int, error) {
	var err error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		var added int
		if added, err = persist(ctx); err == nil {
			return added, nil
		}
		if !utils.IsRetryableError(err) || attempt == p.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(p.config.RetryBackoff * time.Duration(attempt)):
		}
	}
	return 0, utils.WrapError(err, utils.ErrorTypeDataUnavailable, "SINK_WRITE_FAILED", "failed to persist live event", utils.ComponentIngest)
}

// Stats returns overflow, timeout and drop counts of the downstream channel
func (p *Processor) Stats() (overflows, timeouts, dropped int64) {
	return p.stats.Snapshot()
}
