package store

import (
	"time"

	"github.com/quokkaq/go-query-cache/querycache"
)

// entry is the store's internal record for one query key. All fields are
// guarded by the store mutex; consumers only ever see immutable Result
// snapshots taken under that lock.
type entry struct {
	key     querycache.QueryKey
	policy  querycache.Policy
	fetcher querycache.Fetcher

	value     any
	fetchedAt time.Time
	status    querycache.Status
	err       error

	// invalid marks the entry stale ahead of its stale time. The displayed
	// value is kept; the next read (or an immediate background refetch for
	// subscribed entries) revalidates.
	invalid bool

	subscribers map[int64]func(querycache.Result)

	// gcDeadline is set while the entry has no subscribers. Zero means the
	// entry is pinned by at least one subscriber.
	gcDeadline time.Time

	pollStop chan struct{}
}

func (e *entry) snapshot() querycache.Result {
	return querycache.Result{
		Key:       e.key,
		Value:     e.value,
		Status:    e.status,
		Err:       e.err,
		FetchedAt: e.fetchedAt,
	}
}

// stale reports whether the entry needs revalidation at the given time.
func (e *entry) stale(now time.Time) bool {
	switch {
	case e.invalid:
		return true
	case e.status == querycache.StatusIdle, e.status == querycache.StatusError:
		return true
	case e.status == querycache.StatusSuccess:
		return now.Sub(e.fetchedAt) > e.policy.StaleTime
	default:
		return false
	}
}

// expired reports whether an unsubscribed entry has outlived its GC window.
func (e *entry) expired(now time.Time) bool {
	return len(e.subscribers) == 0 && !e.gcDeadline.IsZero() && now.After(e.gcDeadline)
}

// notifyTargets copies the subscriber callbacks so they can be invoked after
// the store lock is released.
func (e *entry) notifyTargets() []func(querycache.Result) {
	if len(e.subscribers) == 0 {
		return nil
	}
	targets := make([]func(querycache.Result), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		if fn != nil {
			targets = append(targets, fn)
		}
	}
	return targets
}
