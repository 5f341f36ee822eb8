package utils

import (
	"context"
	"sync/atomic"
	"time"
)

// BackpressureStats tracks channel overflow statistics
type BackpressureStats struct {
	overflows int64
	timeouts  int64
	dropped   int64
}

// Snapshot returns overflow, timeout and drop counts
func (s *BackpressureStats) Snapshot() (overflows, timeouts, dropped int64) {
	return atomic.LoadInt64(&s.overflows),
		atomic.LoadInt64(&s.timeouts),
		atomic.LoadInt64(&s.dropped)
}

// BackpressureConfig controls what happens when a pipeline channel is full
type BackpressureConfig struct {
	DropOnOverflow bool          `yaml:"dropOnOverflow"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DefaultBackpressureConfig waits up to 100ms before giving up
func DefaultBackpressureConfig() BackpressureConfig {
	return BackpressureConfig{
		Timeout: 100 * time.Millisecond,
	}
}

// SendWithBackpressure sends v on ch. When ch is full it either drops v or waits up to
// cfg.Timeout. It reports whether v was delivered.
func SendWithBackpressure[T any](ctx context.Context, ch chan<- T, v T, cfg BackpressureConfig, stats *BackpressureStats) bool {
	select {
	case ch <- v:
		return true
	default:
	}

	if stats != nil {
		atomic.AddInt64(&stats.overflows, 1)
	}
	if cfg.DropOnOverflow {
		if stats != nil {
			atomic.AddInt64(&stats.dropped, 1)
		}
		return false
	}

	timer := time.NewTimer(cfg.Timeout)
	defer timer.Stop()
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		if stats != nil {
			atomic.AddInt64(&stats.timeouts, 1)
		}
		return false
	}
}

// TrySend sends v without blocking
func TrySend[T any](ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}
