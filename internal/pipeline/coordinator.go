package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/broadcaster"
	"transfer-dashboard-backend/internal/channels"
	"transfer-dashboard-backend/internal/ingest"
	"transfer-dashboard-backend/internal/live"
	"transfer-dashboard-backend/internal/processor"
	"transfer-dashboard-backend/internal/query"
	"transfer-dashboard-backend/internal/scheduler"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/storage"
)

// Deps are the collaborators the pipeline does not own
type Deps struct {
	// Sink receives accepted live events; nil keeps them in memory only
	Sink storage.Sink
	// Warmer and WarmRequest enable the cache warm-up job
	Warmer      scheduler.Warmer
	WarmRequest func() query.Request
	WarmSets    []stats.MetricSet
}

// Coordinator manages the live pipeline:
// kafka ingest -> processor -> live collector -> broadcaster, with scheduled jobs alongside.
type Coordinator struct {
	consumer    *ingest.Consumer
	processor   *processor.Processor
	collector   *live.Collector
	scheduler   *scheduler.Scheduler
	broadcaster *broadcaster.Broadcaster

	channels *channels.Channels
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.Logger
}

// NewCoordinator creates a new pipeline coordinator for chain
func NewCoordinator(config Config, chain string, deps Deps) (*Coordinator, error) {
	ch := channels.NewChannels()

	collector := live.NewCollector(chain, config.Live)
	proc := processor.NewProcessor(config.Processor, chain, deps.Sink, ch.LiveTransfers)
	b := broadcaster.NewBroadcaster(config.Broadcaster, ch, collector)

	var consumer *ingest.Consumer
	if config.Ingest.Enabled {
		var err error
		if consumer, err = ingest.NewConsumer(config.Ingest, proc); err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	s := scheduler.NewScheduler(config.Scheduler)
	if err := s.Register(scheduler.JobSnapshot, config.Scheduler.SnapshotSpec,
		scheduler.SnapshotJob(collector, ch.SnapshotUpdates)); err != nil {
		return nil, err
	}
	if err := s.Register(scheduler.JobReset, config.Scheduler.ResetSpec, scheduler.ResetJob(collector)); err != nil {
		return nil, err
	}
	if deps.Warmer != nil && deps.WarmRequest != nil {
		sets := deps.WarmSets
		if len(sets) == 0 {
			sets = stats.AllMetricSets()
		}
		if err := s.Register(scheduler.JobWarm, config.Scheduler.WarmSpec,
			scheduler.WarmJob(deps.Warmer, deps.WarmRequest, sets)); err != nil {
			return nil, err
		}
	}

	return &Coordinator{
		consumer:    consumer,
		processor:   proc,
		collector:   collector,
		scheduler:   s,
		broadcaster: b,
		channels:    ch,
		log:         utils.Component(utils.ComponentPipeline),
	}, nil
}

// Start launches every pipeline goroutine and returns immediately
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.consumer != nil {
		c.run(ctx, "ingest", c.consumer.Start)
	} else {
		c.log.Info("kafka ingest disabled")
	}
	c.run(ctx, "collector", c.runCollector)
	c.run(ctx, "scheduler", c.scheduler.Start)
	c.run(ctx, "broadcaster", c.broadcaster.Start)

	c.log.Info("pipeline started", zap.String("chain", c.collector.Chain()))
}

func (c *Coordinator) run(ctx context.Context, name string, fn func(context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("goroutine panic recovered", zap.String("thread", name), zap.Any("panic", r))
			}
		}()
		fn(ctx)
	}()
}

// runCollector tallies accepted transfers and forwards new ones to the broadcaster
func (c *Coordinator) runCollector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-c.channels.LiveTransfers:
			if !c.collector.Add(t) {
				continue
			}
			if !utils.TrySend(c.channels.TransferBroadcasts, t.ToTransferRow(1, 5)) {
				c.log.Debug("broadcast channel full, transfer not pushed", zap.String("id", t.Key()))
			}
		}
	}
}

// Collector returns the live collector
func (c *Coordinator) Collector() *live.Collector {
	return c.collector
}

// Processor returns the event processor
func (c *Coordinator) Processor() *processor.Processor {
	return c.processor
}

// Broadcaster returns the broadcaster for WebSocket client management
func (c *Coordinator) Broadcaster() *broadcaster.Broadcaster {
	return c.broadcaster
}

// Scheduler returns the job scheduler
func (c *Coordinator) Scheduler() *scheduler.Scheduler {
	return c.scheduler
}

// Stop cancels every goroutine and waits for them
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.log.Info("pipeline stopped")
}

var _ ingest.Handler = (*processor.Processor)(nil)
