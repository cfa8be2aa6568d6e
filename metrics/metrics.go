// Package metrics collects in-process run and step statistics and
// periodically logs a snapshot.
package metrics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/sirupsen/logrus"
)

// Config represents metrics configuration
type Config struct {
	Enabled       bool          // Enable metrics collection
	FlushInterval time.Duration // Interval to log a snapshot, 0 to never log
	MaxSamples    int           // Maximum samples for histograms
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		FlushInterval: time.Minute,
		MaxSamples:    1000,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.FlushInterval < 0 {
		return errors.New("flush interval must not be negative")
	}
	if c.MaxSamples <= 0 {
		return errors.New("max samples must be positive")
	}
	return nil
}

// actionStats counts step outcomes of one action.
type actionStats struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	duration  *Histogram // seconds
}

// Collector records run progress. It implements engine.Observer.
type Collector struct {
	cfg *Config

	runsStarted   atomic.Int64
	runsCompleted atomic.Int64
	runsFailed    atomic.Int64
	runsAborted   atomic.Int64
	active        atomic.Int64
	runDuration   *Histogram // seconds

	mu       sync.Mutex
	actions  map[job.Action]*actionStats
	runStart map[string]time.Time
	lastMark map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new collector
func NewCollector(cfg *Config) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Collector{
		cfg:         cfg,
		runDuration: NewHistogram(cfg.MaxSamples),
		actions:     make(map[job.Action]*actionStats),
		runStart:    make(map[string]time.Time),
		lastMark:    make(map[string]time.Time),
		stop:        make(chan struct{}),
	}
	for _, a := range job.Actions {
		c.actions[a] = &actionStats{duration: NewHistogram(cfg.MaxSamples)}
	}
	return c, nil
}

// Start logs a snapshot every FlushInterval until ctx is done or Stop is
// called.
func (c *Collector) Start(ctx context.Context) {
	if !c.cfg.Enabled || c.cfg.FlushInterval == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.flush(ctx)
			}
		}
	}()
}

// Stop stops the flush loop
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Collector) flush(ctx context.Context) {
	logger.WithFields(ctx, logrus.Fields{
		"runs_started":   c.runsStarted.Load(),
		"runs_completed": c.runsCompleted.Load(),
		"runs_failed":    c.runsFailed.Load(),
		"runs_active":    c.active.Load(),
	}).Info("run metrics")
}

// mark returns the time since the previous event of the run and resets it.
func (c *Collector) mark(runID string) time.Duration {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.lastMark[runID]
	c.lastMark[runID] = now
	if !ok {
		return 0
	}
	return now.Sub(prev)
}

func (c *Collector) stepStats(a job.Action) *actionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.actions[a]
	if !ok {
		s = &actionStats{duration: NewHistogram(c.cfg.MaxSamples)}
		c.actions[a] = s
	}
	return s
}

func (c *Collector) finish(runID string) {
	c.mu.Lock()
	start, ok := c.runStart[runID]
	delete(c.runStart, runID)
	delete(c.lastMark, runID)
	c.mu.Unlock()
	c.active.Add(-1)
	if ok {
		c.runDuration.Add(time.Since(start).Seconds())
	}
}

func (c *Collector) RunStarted(_ context.Context, run job.Run) {
	if !c.cfg.Enabled {
		return
	}
	c.runsStarted.Add(1)
	c.active.Add(1)
	c.mark(run.ID)
	c.mu.Lock()
	c.runStart[run.ID] = time.Now()
	c.mu.Unlock()
}

func (c *Collector) StepSucceeded(_ context.Context, run job.Run, step job.Step) {
	if !c.cfg.Enabled {
		return
	}
	s := c.stepStats(step.Action)
	s.succeeded.Add(1)
	s.duration.Add(c.mark(run.ID).Seconds())
}

func (c *Collector) StepFailed(_ context.Context, run job.Run, step job.Step, _ error) {
	if !c.cfg.Enabled {
		return
	}
	s := c.stepStats(step.Action)
	s.failed.Add(1)
	s.duration.Add(c.mark(run.ID).Seconds())
	c.runsFailed.Add(1)
	c.finish(run.ID)
}

func (c *Collector) RunCompleted(_ context.Context, run job.Run) {
	if !c.cfg.Enabled {
		return
	}
	c.runsCompleted.Add(1)
	c.finish(run.ID)
}

func (c *Collector) RunAborted(_ context.Context, run job.Run, _ error) {
	if !c.cfg.Enabled {
		return
	}
	c.runsAborted.Add(1)
	c.finish(run.ID)
}

// GetMetrics returns a snapshot of all metrics.
func (c *Collector) GetMetrics() map[string]any {
	steps := make(map[string]any)
	c.mu.Lock()
	for a, s := range c.actions {
		steps[string(a)] = map[string]any{
			"succeeded": s.succeeded.Load(),
			"failed":    s.failed.Load(),
			"duration":  s.duration.GetStats(),
		}
	}
	c.mu.Unlock()

	return map[string]any{
		"runs": map[string]any{
			"started":   c.runsStarted.Load(),
			"completed": c.runsCompleted.Load(),
			"failed":    c.runsFailed.Load(),
			"aborted":   c.runsAborted.Load(),
			"active":    c.active.Load(),
			"duration":  c.runDuration.GetStats(),
		},
		"steps": steps,
	}
}
