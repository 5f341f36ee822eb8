package scheduler

import (
	"context"
	"fmt"

	"transfer-dashboard-backend/internal/live"
	"transfer-dashboard-backend/internal/query"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
)

// Job names
const (
	JobSnapshot = "live_snapshot"
	JobWarm     = "cache_warm"
	JobReset    = "live_reset"
)

// Warmer evaluates a batch of metric sets against a cache it can drop
type Warmer interface {
	ClearCache(ctx context.Context) (int, error)
	RunMany(ctx context.Context, base query.Request, sets []stats.MetricSet) (map[stats.MetricSet]*query.Response, error)
}

// SnapshotJob pushes the collector's current tallies to out. A full channel skips the tick.
func SnapshotJob(c *live.Collector, out chan<- interface{}) JobFunc {
	return func(ctx context.Context) error {
		utils.TrySend(out, interface{}(c.Snapshot()))
		return nil
	}
}

// WarmJob drops memoized results and recomputes sets for the request built by base,
// so events appended since the last tick show up and the first visitor hits the cache.
func WarmJob(w Warmer, base func() query.Request, sets []stats.MetricSet) JobFunc {
	return func(ctx context.Context) error {
		if _, err := w.ClearCache(ctx); err != nil {
			return err
		}
		results, err := w.RunMany(ctx, base(), sets)
		if err != nil {
			return err
		}
		for set, resp := range results {
			if resp.Unavailable {
				return fmt.Errorf("warm-up of %s skipped: upstream unavailable", set)
			}
		}
		return nil
	}
}

// ResetJob starts a new live collection period
func ResetJob(c *live.Collector) JobFunc {
	return func(ctx context.Context) error {
		c.Reset()
		return nil
	}
}
