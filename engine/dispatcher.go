// Package engine executes job steps against a blob store. A Runner
// advances a run by exactly one step per call, a Dispatcher maps a step to
// blob operations and a Merger streams several objects into one through a
// multipart upload.
package engine

import (
	"context"
	"fmt"

	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/oss"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/ncobase/blobjob/engine")

// Executor executes a single step.
type Executor interface {
	Execute(ctx context.Context, s job.Step) error
}

// Dispatcher executes one step. It keeps no state between calls.
type Dispatcher struct {
	store  oss.Interface
	merger *Merger
}

// NewDispatcher creates a dispatcher over store.
func NewDispatcher(store oss.Interface, opts ...MergeOption) *Dispatcher {
	return &Dispatcher{store: store, merger: NewMerger(store, opts...)}
}

// Execute performs the step's action.
func (d *Dispatcher) Execute(ctx context.Context, s job.Step) error {
	switch s.Action {
	case job.ActionCopy:
		src, dst, err := sourceAndDestination(s)
		if err != nil {
			return err
		}
		return d.store.Copy(ctx, src, dst)

	case job.ActionMove:
		src, dst, err := sourceAndDestination(s)
		if err != nil {
			return err
		}
		if err := d.store.Copy(ctx, src, dst); err != nil {
			return err
		}
		if err := d.store.Delete(ctx, src); err != nil {
			return fmt.Errorf("delete source after copy to %s: %w", dst, err)
		}
		return nil

	case job.ActionDelete:
		src, err := parseField("source", s.Source)
		if err != nil {
			return err
		}
		return d.store.Delete(ctx, src)

	case job.ActionMerge:
		srcs, err := oss.ParseLocations(s.Sources)
		if err != nil {
			return err
		}
		dst, err := parseField("destination", s.Destination)
		if err != nil {
			return err
		}
		return d.merger.Merge(ctx, srcs, dst)

	case job.ActionError:
		return job.ErrInjectedFault

	default:
		return fmt.Errorf("%w: %q", job.ErrUnknownAction, string(s.Action))
	}
}

func sourceAndDestination(s job.Step) (oss.Location, oss.Location, error) {
	src, err := parseField("source", s.Source)
	if err != nil {
		return oss.Location{}, oss.Location{}, err
	}
	dst, err := parseField("destination", s.Destination)
	if err != nil {
		return oss.Location{}, oss.Location{}, err
	}
	return src, dst, nil
}

func parseField(name, value string) (oss.Location, error) {
	loc, err := oss.ParseLocation(value)
	if err != nil {
		return oss.Location{}, fmt.Errorf("%s: %w", name, err)
	}
	return loc, nil
}
