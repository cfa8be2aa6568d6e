// Package paging provides opaque cursor pagination over ordered key sets.
//
// A cursor encodes the last key returned by the previous page. Callers treat
// it as opaque and hand it back unchanged to fetch the next page.
package paging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// ErrInvalidCursor is returned for cursors that were not produced by EncodeCursor.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds the pagination parameters
type Params struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
}

// Result holds one page
type Result[T any] struct {
	Items       []T    `json:"items"`
	NextCursor  string `json:"next,omitempty"`
	HasNextPage bool   `json:"has_next"`
}

// NormalizeParams ensures that Limit is within an acceptable range
func NormalizeParams(params Params) Params {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	return params
}

// EncodeCursor encodes a key to a cursor string
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor decodes a cursor string to a key. The empty cursor decodes to
// the empty key.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || len(b) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return string(b), nil
}

// PageFunc fetches one page starting after cursor.
type PageFunc[T any] func(ctx context.Context, cursor string, limit int) (items []T, next string, err error)

// Paginate fetches one page using fn
func Paginate[T any](ctx context.Context, params Params, fn PageFunc[T]) (*Result[T], error) {
	params = NormalizeParams(params)
	items, next, err := fn(ctx, params.Cursor, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("pagination error: %w", err)
	}
	if items == nil {
		items = make([]T, 0)
	}
	return &Result[T]{
		Items:       items,
		NextCursor:  next,
		HasNextPage: next != "",
	}, nil
}

// Each walks every page in order and calls visit for each item. It stops at
// the first error from fn or visit.
func Each[T any](ctx context.Context, limit int, fn PageFunc[T], visit func(T) error) error {
	params := NormalizeParams(Params{Limit: limit})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := Paginate(ctx, params, fn)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := visit(item); err != nil {
				return err
			}
		}
		if !page.HasNextPage {
			return nil
		}
		params.Cursor = page.NextCursor
	}
}
