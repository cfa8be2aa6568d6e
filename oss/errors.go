package oss

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies blob store failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermission
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermission:
		return "permission denied"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound matches any *Error of KindNotFound via errors.Is.
	ErrNotFound = errors.New("object not found")
	// ErrPermission matches any *Error of KindPermission via errors.Is.
	ErrPermission = errors.New("permission denied")
	// ErrTransient matches any *Error of KindTransient via errors.Is.
	ErrTransient = errors.New("transient storage failure")
)

// Error is returned by every Interface implementation for failures of the
// underlying service.
type Error struct {
	Op       string
	Location Location
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("oss %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("oss %s %s: %s: %v", e.Op, e.Location, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) and friends match on Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrTransient:
		return e.Kind == KindTransient
	}
	return false
}

// newError wraps err unless it is already an *Error.
func newError(op string, loc Location, kind Kind, err error) error {
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return &Error{Op: op, Location: loc, Kind: kind, Err: err}
}

// IsNotFound reports whether err is a not-found storage error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// kindFromStatus maps an HTTP status code to a Kind.
func kindFromStatus(status int) Kind {
	switch {
	case status == 404:
		return KindNotFound
	case status == 401 || status == 403:
		return KindPermission
	case status == 408 || status == 429 || status >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}

// kindFromNetwork catches timeouts and connection failures that never
// produced an HTTP response.
func kindFromNetwork(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransient
	}
	return KindUnknown
}
