package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull  = errors.New("task queue is full")
	ErrPoolClosed = errors.New("worker pool is stopped")
)

// Config represents pool configuration
type Config struct {
	MaxWorkers  int           // maximum number of workers
	QueueSize   int           // task queue size
	TaskTimeout time.Duration // timeout for single task, 0 for none
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:  4,                // default 4 workers
		QueueSize:   100,              // default queue size 100
		TaskTimeout: 30 * time.Minute, // default timeout 30 minutes
	}
}

// Validate validates configuration
func (cfg *Config) Validate() error {
	if cfg.MaxWorkers < 1 {
		return errors.New("max workers must be greater than 0")
	}
	if cfg.QueueSize < 1 {
		return errors.New("queue size must be greater than 0")
	}
	if cfg.TaskTimeout < 0 {
		return errors.New("task timeout must be greater than or equal to 0")
	}
	return nil
}

// Task is a unit of work. ctx is cancelled when the task times out or the
// pool stops.
type Task func(ctx context.Context) error

// ErrorHandler receives the error of a failed task.
type ErrorHandler func(err error)

// Metrics tracks pool's operational metrics
type Metrics struct {
	ActiveWorkers  atomic.Int64
	PendingTasks   atomic.Int64
	CompletedTasks atomic.Int64
	FailedTasks    atomic.Int64
	ProcessingTime atomic.Int64 // nanoseconds
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	maxWorkers  int
	queueSize   int
	taskTimeout time.Duration
	onError     ErrorHandler

	mu     sync.RWMutex
	closed bool
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *Metrics
}

// NewPool creates a new worker pool. Call Start before submitting.
//
// Usage:
//
//	pool := worker.NewPool(&worker.Config{MaxWorkers: 4, QueueSize: 100}, nil)
//	pool.Start()
//	defer pool.Stop(ctx)
//
//	err := pool.Submit(func(ctx context.Context) error {
//	    _, err := runner.RunToCompletion(ctx, run, observer)
//	    return err
//	})
func NewPool(cfg *Config, onError ErrorHandler) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		maxWorkers:  cfg.MaxWorkers,
		queueSize:   cfg.QueueSize,
		taskTimeout: cfg.TaskTimeout,
		onError:     onError,
		tasks:       make(chan Task, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &Metrics{},
	}
}

// NewStartedPool validates cfg, starts a pool and returns it with its
// cleanup function.
func NewStartedPool(cfg *Config, onError ErrorHandler) (*Pool, func(), error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	pool := NewPool(cfg, onError)
	pool.Start()

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pool.Stop(ctx)
	}
	return pool, cleanup, nil
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops accepting tasks, lets the queued ones drain and waits for the
// workers until ctx is done. Running tasks are cancelled when ctx expires.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()
}

// Submit queues a task without blocking.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		p.metrics.PendingTasks.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// worker represents a worker goroutine
func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.processTask(task)
	}
}

// processTask processes a single task
func (p *Pool) processTask(task Task) {
	start := time.Now()
	p.metrics.ActiveWorkers.Add(1)
	p.metrics.PendingTasks.Add(-1)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.taskTimeout > 0 {
		ctx, cancel = context.WithTimeout(p.ctx, p.taskTimeout)
	} else {
		ctx, cancel = context.WithCancel(p.ctx)
	}

	var err error
	defer func() {
		cancel()
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		p.metrics.ActiveWorkers.Add(-1)
		p.metrics.ProcessingTime.Add(time.Since(start).Nanoseconds())
		if err != nil {
			p.metrics.FailedTasks.Add(1)
			if p.onError != nil {
				p.onError(err)
			}
			return
		}
		p.metrics.CompletedTasks.Add(1)
	}()

	err = task(ctx)
}

// GetMetrics returns the current metrics
func (p *Pool) GetMetrics() map[string]int64 {
	return map[string]int64{
		"active_workers":  p.metrics.ActiveWorkers.Load(),
		"pending_tasks":   p.metrics.PendingTasks.Load(),
		"completed_tasks": p.metrics.CompletedTasks.Load(),
		"failed_tasks":    p.metrics.FailedTasks.Load(),
		"processing_time": p.metrics.ProcessingTime.Load(),
	}
}

// IsIdle returns whether the pool is idle
func (p *Pool) IsIdle() bool {
	return p.metrics.ActiveWorkers.Load() == 0 && p.metrics.PendingTasks.Load() == 0
}
