package observes

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/ncobase/blobjob/job"
)

type SentryOptions struct {
	Dsn         string
	Name        string
	Release     string
	Environment string
}

// NewSentry registers the sentry client. A nil or DSN-less option leaves
// sentry disabled.
func NewSentry(opt *SentryOptions) error {
	if opt == nil || opt.Dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              opt.Dsn,
		AttachStacktrace: true,
		ServerName:       opt.Name,
		Release:          opt.Release,
		Environment:      opt.Environment,
	})
}

// CaptureRunFailure reports a failed step with its run context. It is a
// no-op when sentry was never initialised.
func CaptureRunFailure(_ context.Context, run job.Run, err error) {
	hub := sentry.CurrentHub().Clone()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", run.ID)
		scope.SetTag("job_name", run.Name)
		scope.SetContext("run", sentry.Context{
			"current":   run.Current,
			"stepCount": run.StepCount,
		})
		hub.CaptureException(err)
	})
}

// FlushSentry waits for buffered events to be sent.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}
