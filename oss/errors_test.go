package oss

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	loc := MustParseLocation("b/k")
	err := fmt.Errorf("step failed: %w", newError("delete", loc, KindNotFound, errors.New("NoSuchKey")))

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected ErrNotFound to match")
	}
	if errors.Is(err, ErrPermission) || errors.Is(err, ErrTransient) {
		t.Error("unexpected kind match")
	}

	var oe *Error
	if !errors.As(err, &oe) {
		t.Fatal("expected *Error")
	}
	if oe.Op != "delete" || oe.Location != loc {
		t.Errorf("unexpected error fields: %+v", oe)
	}
}

func TestNewErrorKeepsExisting(t *testing.T) {
	inner := newError("head", MustParseLocation("b/k"), KindPermission, errors.New("AccessDenied"))
	outer := newError("delete", MustParseLocation("b/k"), KindUnknown, inner)
	if outer != inner {
		t.Errorf("expected existing *Error to be returned unchanged")
	}
}

func TestKindFromStatus(t *testing.T) {
	cases := map[int]Kind{
		404: KindNotFound,
		403: KindPermission,
		401: KindPermission,
		503: KindTransient,
		429: KindTransient,
		400: KindUnknown,
	}
	for status, want := range cases {
		if got := kindFromStatus(status); got != want {
			t.Errorf("kindFromStatus(%d) = %s, want %s", status, got, want)
		}
	}
	if kindFromNetwork(context.DeadlineExceeded) != KindTransient {
		t.Error("expected deadline exceeded to be transient")
	}
}
