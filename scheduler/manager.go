package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ncobase/blobjob/concurrency"
	"github.com/ncobase/blobjob/concurrency/worker"
	"github.com/ncobase/blobjob/engine"
	"github.com/ncobase/blobjob/events"
	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/ncobase/blobjob/paging"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Config holds scheduler settings.
type Config struct {
	Workers      int           `json:"workers" yaml:"workers"`
	QueueSize    int           `json:"queue_size" yaml:"queue_size"`
	RunTimeout   time.Duration `json:"run_timeout" yaml:"run_timeout"`
	SyncInterval time.Duration `json:"sync_interval" yaml:"sync_interval"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:      4,
		QueueSize:    100,
		RunTimeout:   30 * time.Minute,
		SyncInterval: time.Minute,
	}
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize == 0 {
		c.QueueSize = d.QueueSize
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = d.SyncInterval
	}
	if c.Workers < 0 || c.QueueSize < 0 || c.RunTimeout < 0 || c.SyncInterval < 0 {
		return errors.New("scheduler settings must not be negative")
	}
	return nil
}

// JobLister pages through stored jobs.
type JobLister interface {
	JobSource
	ListJobs(ctx context.Context, cursor string, limit int) ([]job.Details, string, error)
}

type entry struct {
	id       cron.EntryID
	schedule string
}

// Manager fires job runs on their cron schedules.
type Manager struct {
	cfg      *Config
	jobs     JobLister
	starter  *Starter
	runner   *engine.Runner
	slots    *concurrency.Slots
	pool     *worker.Pool
	cron     *cron.Cron
	observer engine.Observer

	mu      sync.Mutex
	entries map[string]entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver adds an observer notified of every run, next to the event
// publisher.
func WithObserver(o engine.Observer) Option {
	return func(m *Manager) {
		m.observer = engine.Observers(m.observer, o)
	}
}

// NewManager creates a manager. Call Start to begin firing.
func NewManager(cfg *Config, jobs JobLister, runner *engine.Runner, publisher events.Publisher, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if jobs == nil || runner == nil {
		return nil, errors.New("job store and runner are required")
	}
	if publisher == nil {
		publisher = events.NewLogPublisher()
	}

	pool := worker.NewPool(&worker.Config{
		MaxWorkers:  cfg.Workers,
		QueueSize:   cfg.QueueSize,
		TaskTimeout: cfg.RunTimeout,
	}, func(err error) {
		logger.Errorf(context.Background(), "run failed: %v", err)
	})

	m := &Manager{
		cfg:      cfg,
		jobs:     jobs,
		starter:  NewStarter(jobs),
		runner:   runner,
		slots:    concurrency.NewSlots(),
		pool:     pool,
		cron:     cron.New(),
		observer: NewObserver(publisher),
		entries:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start syncs the schedule, starts the workers and the cron loop, and
// re-syncs every SyncInterval until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	m.pool.Start()
	if err := m.Sync(ctx); err != nil {
		return err
	}
	m.cron.Start()

	go func() {
		ticker := time.NewTicker(m.cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Sync(ctx); err != nil {
					logger.Errorf(ctx, "failed to sync schedule: %v", err)
				}
			}
		}
	}()
	return nil
}

// Stop halts firing and waits for running jobs until ctx is done.
func (m *Manager) Stop(ctx context.Context) {
	<-m.cron.Stop().Done()
	m.pool.Stop(ctx)
	if !m.pool.IsIdle() {
		logger.Warnf(ctx, "stopped with runs still in flight: %v", m.pool.GetMetrics())
	}
}

// Sync registers a cron entry for every enabled, valid job with a
// schedule, and removes entries of jobs that no longer qualify.
func (m *Manager) Sync(ctx context.Context) error {
	wanted := make(map[string]string)
	err := paging.Each(ctx, 100, m.jobs.ListJobs, func(d job.Details) error {
		if d.State == job.StateEnabled && d.ValidationState == job.Valid && d.Schedule != "" {
			wanted[d.ID] = d.Schedule
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		if schedule, ok := wanted[id]; !ok || schedule != e.schedule {
			m.cron.Remove(e.id)
			delete(m.entries, id)
		}
	}
	for id, schedule := range wanted {
		if _, ok := m.entries[id]; ok {
			continue
		}
		jobID := id
		eid, err := m.cron.AddFunc(schedule, func() { m.fire(ctx, jobID) })
		if err != nil {
			logger.Warnf(logger.WithJobID(ctx, id), "invalid schedule %q: %v", schedule, err)
			continue
		}
		m.entries[id] = entry{id: eid, schedule: schedule}
	}
	logger.Debugf(ctx, "schedule synced, %d jobs registered", len(m.entries))
	return nil
}

// Scheduled returns the ids of jobs with a cron entry.
func (m *Manager) Scheduled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) fire(ctx context.Context, id string) {
	ctx = logger.WithJobID(ctx, id)
	if err := m.Trigger(ctx, id); err != nil {
		if errors.Is(err, ErrBusy) {
			logger.Infof(ctx, "skipping scheduled run: %v", err)
			return
		}
		logger.Errorf(ctx, "scheduled run not started: %v", err)
	}
}

// Trigger starts a run of job id now. It fails with ErrBusy when a run of
// the job is in flight, and with the Starter's errors when the job may not
// run. The run itself executes on the worker pool.
func (m *Manager) Trigger(ctx context.Context, id string) error {
	if !m.slots.TryAcquire(id) {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}

	run, err := m.starter.Start(ctx, id)
	if err != nil {
		m.slots.Release(id)
		return err
	}

	execID := newExecutionID()
	err = m.pool.Submit(func(taskCtx context.Context) error {
		defer m.slots.Release(id)
		taskCtx = logger.WithJobID(logger.WithTraceID(taskCtx, execID), id)
		return m.execute(taskCtx, run)
	})
	if err != nil {
		m.slots.Release(id)
		return fmt.Errorf("failed to submit run of %s: %w", id, err)
	}
	logger.WithFields(logger.WithJobID(ctx, id), logrus.Fields{
		"execution_id": execID,
		"step_count":   run.StepCount,
	}).Info("run submitted")
	return nil
}

func (m *Manager) execute(ctx context.Context, run job.Run) error {
	final, err := m.runner.RunToCompletion(ctx, run, m.observer)
	if err != nil {
		return fmt.Errorf("run of %s stopped at step %d of %d: %w", run.ID, final.Current, final.StepCount, err)
	}
	return nil
}

// GetMetrics returns pool and slot metrics.
func (m *Manager) GetMetrics() map[string]int64 {
	out := m.pool.GetMetrics()
	for k, v := range m.slots.GetMetrics() {
		out["slots_"+k] = v
	}
	return out
}
