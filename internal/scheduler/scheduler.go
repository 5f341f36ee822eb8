package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/metrics"
	"transfer-dashboard-backend/internal/utils"
)

// Config holds scheduler configuration. Specs use the six-field cron format with seconds;
// an empty spec registers the job disabled.
type Config struct {
	SnapshotSpec string        `yaml:"snapshotSpec"` // live snapshot push (default: every 5s)
	WarmSpec     string        `yaml:"warmSpec"`     // cache warm-up of the default view (default: every 15m)
	ResetSpec    string        `yaml:"resetSpec"`    // live collector reset (default: disabled)
	JobTimeout   time.Duration `yaml:"jobTimeout"`   // per run (default: 2m)
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		SnapshotSpec: "*/5 * * * * *",
		WarmSpec:     "0 */15 * * * *",
		JobTimeout:   2 * time.Minute,
	}
}

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

type job struct {
	name    string
	spec    string
	run     JobFunc
	running atomic.Bool
}

// Scheduler runs named jobs on cron schedules
type Scheduler struct {
	config Config
	cron   *cron.Cron
	jobs   map[string]*job
	mu     sync.RWMutex
	log    *zap.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(config Config) *Scheduler {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	return &Scheduler{
		config: config,
		cron:   cron.New(cron.WithSeconds()),
		jobs:   make(map[string]*job),
		log:    utils.Component(utils.ComponentScheduler),
	}
}

// Register adds a job. An empty spec keeps it available to Trigger only.
func (s *Scheduler) Register(name, spec string, run JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{name: name, spec: spec, run: run}

	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.execute(context.Background(), j) }); err != nil {
			return utils.WrapError(err, utils.ErrorTypeConfig, "INVALID_CRON_SPEC",
				fmt.Sprintf("invalid schedule %q for job %s", spec, name), utils.ComponentScheduler)
		}
	}
	s.jobs[name] = j

	if spec == "" {
		s.log.Info("job registered but disabled", zap.String("job", name))
	} else {
		s.log.Info("job registered", zap.String("job", name), zap.String("cron", spec))
	}
	return nil
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trigger runs a job immediately and waits for it
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return s.execute(ctx, j)
}

// execute runs j unless a previous run is still in flight
func (s *Scheduler) execute(ctx context.Context, j *job) (err error) {
	if !j.running.CompareAndSwap(false, true) {
		metrics.JobRunsTotal.WithLabelValues(j.name, "skipped").Inc()
		s.log.Debug("previous run still in flight, skipping", zap.String("job", j.name))
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		status := "success"
		if err != nil {
			status = "failed"
			utils.LogError(s.log, err, "job failed", zap.String("job", j.name))
		}
		metrics.JobRunsTotal.WithLabelValues(j.name, status).Inc()
		s.log.Debug("job finished", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
	}()

	return j.run(ctx)
}

// Start runs the cron loop until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Strings("jobs", s.Jobs()))

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("scheduler stopped")
}
