package querycache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidResultType is returned by Value when a cached value does not
// match the type the caller asked for. It indicates two readers sharing one
// key with different expected types, which is a caller bug.
var ErrInvalidResultType = errors.New("querycache: cached value has unexpected type")

// Fetcher loads fresh data for one key from the data source. Fetches are
// read operations: idempotent, side-effect free, safe to de-duplicate.
type Fetcher func(ctx context.Context) (any, error)

// FetchFn is the typed fetcher shape consumers usually write. Wrap it with
// Fetch to plug it into the untyped store contract.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Fetch adapts a typed FetchFn to the untyped Fetcher used by the store.
func Fetch[T any](fn FetchFn[T]) Fetcher {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// Status describes the lifecycle state of a cache entry.
type Status string

const (
	// StatusIdle is an entry that exists but has never completed a fetch.
	StatusIdle Status = "idle"
	// StatusPending is an entry with a fetch in flight. The last known value,
	// if any, stays visible alongside this status.
	StatusPending Status = "pending"
	// StatusSuccess is an entry holding data from a completed fetch.
	StatusSuccess Status = "success"
	// StatusError is an entry whose most recent fetch failed. The last good
	// value, if any, is retained for display.
	StatusError Status = "error"
)

// Result is an immutable snapshot of one cache entry's observable state,
// handed to readers and subscribers. Mutating a Result never affects the
// store.
type Result struct {
	Key       QueryKey
	Value     any
	Status    Status
	Err       error
	FetchedAt time.Time
}

// HasValue reports whether the snapshot carries data, fresh or stale.
func (r Result) HasValue() bool { return r.Value != nil }

// Value extracts a Result's value as T. It returns the zero value with a nil
// error when the entry has no data yet, and ErrInvalidResultType when the
// cached value is of a different type.
func Value[T any](r Result) (T, error) {
	var zero T
	if r.Value == nil {
		return zero, nil
	}
	v, ok := r.Value.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return v, nil
}
