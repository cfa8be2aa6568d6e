package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ncobase/blobjob/config"
	"github.com/ncobase/blobjob/engine"
	"github.com/ncobase/blobjob/events"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/ncobase/blobjob/observes"
	"github.com/ncobase/blobjob/oss"
	"github.com/ncobase/blobjob/store"
	"github.com/ncobase/blobjob/validation"
	"github.com/ncobase/blobjob/version"
	"github.com/redis/go-redis/v9"
)

// app holds the components built from the configuration.
type app struct {
	cfg       *config.Config
	blobs     oss.Interface
	publisher events.Publisher
	rc        *redis.Client
	jobs      *store.Store
	cleanups  []func()
}

func newApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := config.Init(opts.confPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	info := version.GetVersionInfo()
	logger.SetVersion(info.Version)
	logCleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	a.cleanups = append(a.cleanups, logCleanup)

	if err := observes.NewSentry(&observes.SentryOptions{
		Dsn:         cfg.Observes.Sentry.Endpoint,
		Name:        cfg.AppName,
		Release:     sentryRelease(cfg.Observes.Sentry.Release, info.Version),
		Environment: cfg.Observes.Sentry.Environment,
	}); err != nil {
		logger.Warnf(ctx, "sentry disabled: %v", err)
	} else {
		a.cleanups = append(a.cleanups, func() { observes.FlushSentry(2 * time.Second) })
	}

	tc := cfg.Observes.Tracer
	shutdown, err := observes.NewTracer(ctx, &observes.TracerOption{
		URL:                tc.Endpoint,
		Name:               tc.ServiceName,
		Version:            info.Version,
		Environment:        tc.Environment,
		SamplingRate:       tc.SamplingRate,
		BatchTimeout:       tc.BatchTimeout,
		ExportTimeout:      tc.ExportTimeout,
		MaxExportBatchSize: tc.MaxExportBatchSize,
	})
	if err != nil {
		logger.Warnf(ctx, "tracing disabled: %v", err)
	} else {
		a.cleanups = append(a.cleanups, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		})
	}

	a.blobs, err = oss.NewStorage(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// store connects to redis on first use.
func (a *app) store(ctx context.Context) (*store.Store, error) {
	if a.jobs != nil {
		return a.jobs, nil
	}
	rc, err := store.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.rc = rc
	a.cleanups = append(a.cleanups, func() { _ = rc.Close() })

	a.jobs, err = store.New(rc, a.blobs, a.cfg.Jobs.Bucket)
	if err != nil {
		return nil, err
	}
	return a.jobs, nil
}

// events returns the configured publisher, creating it on first use.
func (a *app) events() (events.Publisher, error) {
	if a.publisher != nil {
		return a.publisher, nil
	}
	p, err := events.NewPublisher(a.cfg.Events)
	if err != nil {
		return nil, err
	}
	a.publisher = p
	a.cleanups = append(a.cleanups, func() { _ = p.Close() })
	return p, nil
}

func (a *app) runner() *engine.Runner {
	return engine.NewRunner(engine.NewDispatcher(a.blobs))
}

func (a *app) validationService(ctx context.Context) (*validation.Service, error) {
	jobs, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := a.events()
	if err != nil {
		return nil, err
	}
	return validation.NewService(jobs, validation.NewStepValidator(), pub)
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// sentryRelease prefers the configured release over the build version.
func sentryRelease(configured, version string) string {
	if configured != "" {
		return configured
	}
	return version
}
