package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/quokkaq/go-query-cache/querycache"
)

// ErrClosed is returned by reads issued after Close.
var ErrClosed = errors.New("store: closed")

// Store is the authoritative in-memory mapping from query keys to cache
// entries. Reads follow a stale-while-revalidate contract: the last known
// value is returned immediately while a background fetch revalidates. The
// store owns every entry; consumers receive snapshots and subscriptions,
// never direct references.
//
// All exported operations are safe for concurrent use and atomic with
// respect to each other.
type Store struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	nextSub int64
	closed  bool

	// sf collapses concurrent fetch attempts for one canonical key into a
	// single data source call, backing up the pending-status guard.
	sf singleflight.Group

	janitorDone chan struct{}
}

// notice is a pending subscriber notification, dispatched after the store
// lock is released so callbacks may freely call back into the store.
type notice struct {
	targets []func(querycache.Result)
	res     querycache.Result
}

// New constructs a Store from the given configuration.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultPolicy.IsZero() {
		cfg.DefaultPolicy = querycache.DefaultPolicy()
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:     cfg,
		log:     cfg.Logger,
		now:     now,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}

	if cfg.JanitorInterval > 0 {
		s.janitorDone = make(chan struct{})
		go s.janitor(cfg.JanitorInterval)
	}

	return s, nil
}

// Get returns the current state of the entry for key and, when the entry is
// missing, errored, invalidated, or past its stale time, schedules exactly
// one background fetch. While that fetch is in flight the last known value
// stays visible with StatusPending; Get never blocks on the data source.
//
// A zero policy selects the store's default. Invalid policies and zero keys
// are caller bugs and rejected immediately.
func (s *Store) Get(ctx context.Context, key querycache.QueryKey, fetch querycache.Fetcher, policy querycache.Policy) (querycache.Result, error) {
	if key.IsZero() {
		return querycache.Result{}, fmt.Errorf("store: Get called with zero key")
	}
	if policy.IsZero() {
		policy = s.cfg.DefaultPolicy
	}
	if err := policy.Validate(); err != nil {
		return querycache.Result{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return querycache.Result{}, ErrClosed
	}
	e := s.ensureEntryLocked(key, policy)
	e.policy = policy
	if fetch != nil {
		e.fetcher = fetch
	}
	if len(e.subscribers) > 0 {
		s.startPollingLocked(e)
	}

	var notices []notice
	if e.status != querycache.StatusPending && e.stale(s.now()) && e.fetcher != nil {
		notices = append(notices, s.scheduleFetchLocked(e))
	}
	res := e.snapshot()
	s.mu.Unlock()

	s.dispatch(notices)
	return res, nil
}

// Peek returns the entry snapshot without scheduling any fetch. Entries past
// their GC deadline are treated as absent.
func (s *Store) Peek(key querycache.QueryKey) (querycache.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return querycache.Result{}, false
	}
	if e.expired(s.now()) {
		s.evictLocked(e)
		return querycache.Result{}, false
	}
	return e.snapshot(), true
}

// Invalidate marks every entry matched by pred as stale without clearing its
// displayed value. Subscribed entries refetch immediately in the background;
// unsubscribed entries refetch on their next read.
func (s *Store) Invalidate(pred querycache.Predicate) {
	if pred == nil {
		return
	}

	s.mu.Lock()
	var notices []notice
	for _, e := range s.entries {
		if !pred(e.key) {
			continue
		}
		notices = append(notices, s.invalidateEntryLocked(e)...)
	}
	s.mu.Unlock()

	s.dispatch(notices)
}

// InvalidateKeys marks exactly the listed entries stale. Keys without a
// cached entry are ignored.
func (s *Store) InvalidateKeys(keys []querycache.QueryKey) {
	s.mu.Lock()
	var notices []notice
	for _, key := range keys {
		if e, ok := s.entries[key.String()]; ok {
			notices = append(notices, s.invalidateEntryLocked(e)...)
		}
	}
	s.mu.Unlock()

	s.dispatch(notices)
}

// SetOptimistic applies an immediate local update to the entry's value and
// returns the previous value for snapshot and rollback bookkeeping. The
// entry is not marked as fetched: its status and fetch timestamp are left
// untouched, so the next revalidation still replaces the optimistic value
// with authoritative data.
func (s *Store) SetOptimistic(key querycache.QueryKey, update func(prev any) any) any {
	if update == nil {
		panic("store: SetOptimistic requires an update function")
	}

	s.mu.Lock()
	e := s.ensureEntryLocked(key, s.cfg.DefaultPolicy)
	prev := e.value
	e.value = update(prev)
	n := notice{targets: e.notifyTargets(), res: e.snapshot()}
	s.mu.Unlock()

	s.log.Debug().Str("key", key.String()).Msg("optimistic update applied")
	s.dispatch([]notice{n})
	return prev
}

// Subscription pins one consumer to a cache entry. Closing it decrements the
// entry's reference count; when the count reaches zero the GC countdown
// starts and background polling stops.
type Subscription struct {
	store *Store
	key   querycache.QueryKey
	id    int64
	once  sync.Once
}

// Key returns the subscribed query key.
func (sub *Subscription) Key() querycache.QueryKey { return sub.key }

// Close unsubscribes. Closing twice is a no-op.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.store.unsubscribe(sub.key, sub.id)
	})
}

// Subscribe registers onUpdate to be called with a fresh snapshot whenever
// the entry changes, and returns the current snapshot alongside the
// subscription handle. onUpdate may be nil for callers that only want to pin
// the entry. Subscribing cancels any pending GC countdown and starts
// background polling when the entry's policy asks for it.
func (s *Store) Subscribe(key querycache.QueryKey, onUpdate func(querycache.Result)) (*Subscription, querycache.Result) {
	s.mu.Lock()
	e := s.ensureEntryLocked(key, s.cfg.DefaultPolicy)
	s.nextSub++
	id := s.nextSub
	e.subscribers[id] = onUpdate
	e.gcDeadline = time.Time{}
	s.startPollingLocked(e)
	res := e.snapshot()
	s.mu.Unlock()

	return &Subscription{store: s, key: key, id: id}, res
}

func (s *Store) unsubscribe(key querycache.QueryKey, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return
	}
	delete(e.subscribers, id)
	if len(e.subscribers) == 0 {
		s.stopPollingLocked(e)
		e.gcDeadline = s.now().Add(e.policy.GCTime)
		s.log.Debug().Str("key", key.String()).Time("gc_deadline", e.gcDeadline).Msg("last subscriber gone")
	}
}

// Sweep evicts every unsubscribed entry whose GC window has elapsed and
// returns the number of evictions. The janitor calls this periodically; it
// is exported for callers that disable the janitor.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Len returns the number of live entries, evicting expired ones first.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

// Close stops the janitor and all background polling and cancels the context
// handed to in-flight fetches. The store must not be used afterwards.
func (s *Store) Close() {
	s.cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, e := range s.entries {
		s.stopPollingLocked(e)
	}
	s.mu.Unlock()

	if s.janitorDone != nil {
		<-s.janitorDone
	}
}

func (s *Store) ensureEntryLocked(key querycache.QueryKey, policy querycache.Policy) *entry {
	canonical := key.String()
	if e, ok := s.entries[canonical]; ok {
		return e
	}
	e := &entry{
		key:         key,
		policy:      policy,
		status:      querycache.StatusIdle,
		subscribers: make(map[int64]func(querycache.Result)),
		gcDeadline:  s.now().Add(policy.GCTime),
	}
	s.entries[canonical] = e
	return e
}

// scheduleFetchLocked transitions the entry to pending and launches the
// background fetch. The pending status is the per-key de-duplication guard:
// callers must check it before calling. The singleflight group collapses any
// remaining same-key races onto one data source call.
func (s *Store) scheduleFetchLocked(e *entry) notice {
	e.status = querycache.StatusPending
	e.invalid = false

	key := e.key
	fetch := e.fetcher
	canonical := key.String()
	s.log.Debug().Str("key", canonical).Msg("fetch scheduled")

	go func() {
		v, err, _ := s.sf.Do(canonical, func() (any, error) {
			return fetch(s.ctx)
		})
		s.applyFetchResult(key, v, err)
	}()

	return notice{targets: e.notifyTargets(), res: e.snapshot()}
}

// applyFetchResult writes a completed fetch back into the entry. Results
// apply in completion order, last write wins per key. A fetch failure keeps
// the last good value and timestamp so consumers can keep displaying stale
// data alongside the error.
func (s *Store) applyFetchResult(key querycache.QueryKey, v any, err error) {
	s.mu.Lock()
	e, ok := s.entries[key.String()]
	if !ok {
		// Evicted while the fetch was in flight; drop the result.
		s.mu.Unlock()
		return
	}

	if err != nil {
		e.status = querycache.StatusError
		e.err = err
		s.log.Debug().Str("key", key.String()).Err(err).Msg("fetch failed, keeping last good value")
	} else {
		e.status = querycache.StatusSuccess
		e.value = v
		e.err = nil
		e.fetchedAt = s.now()
	}

	if len(e.subscribers) == 0 {
		e.gcDeadline = s.now().Add(e.policy.GCTime)
	}

	notices := []notice{{targets: e.notifyTargets(), res: e.snapshot()}}

	// An invalidation raced the fetch: its result stands, but subscribed
	// entries immediately revalidate so the possibly stale write is
	// overwritten shortly after.
	if e.invalid && len(e.subscribers) > 0 && e.fetcher != nil {
		notices = append(notices, s.scheduleFetchLocked(e))
	}
	s.mu.Unlock()

	s.dispatch(notices)
}

func (s *Store) invalidateEntryLocked(e *entry) []notice {
	e.invalid = true
	s.log.Debug().Str("key", e.key.String()).Msg("entry invalidated")

	if e.status != querycache.StatusPending && len(e.subscribers) > 0 && e.fetcher != nil {
		return []notice{s.scheduleFetchLocked(e)}
	}
	return nil
}

func (s *Store) startPollingLocked(e *entry) {
	if e.policy.PollInterval <= 0 || e.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	e.pollStop = stop
	go s.pollLoop(e.key, e.policy.PollInterval, stop)
}

func (s *Store) stopPollingLocked(e *entry) {
	if e.pollStop != nil {
		close(e.pollStop)
		e.pollStop = nil
	}
}

// pollLoop refetches the key at the configured interval until the last
// subscriber goes away or the store closes. Polling runs on the wall clock.
func (s *Store) pollLoop(key querycache.QueryKey, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refresh(key)
		}
	}
}

func (s *Store) refresh(key querycache.QueryKey) {
	s.mu.Lock()
	var notices []notice
	if e, ok := s.entries[key.String()]; ok {
		if e.status != querycache.StatusPending && e.fetcher != nil {
			notices = append(notices, s.scheduleFetchLocked(e))
		}
	}
	s.mu.Unlock()

	s.dispatch(notices)
}

func (s *Store) sweepLocked() int {
	now := s.now()
	evicted := 0
	for _, e := range s.entries {
		if e.expired(now) {
			s.evictLocked(e)
			evicted++
		}
	}
	return evicted
}

func (s *Store) evictLocked(e *entry) {
	s.stopPollingLocked(e)
	delete(s.entries, e.key.String())
	s.log.Debug().Str("key", e.key.String()).Msg("entry evicted")
}

func (s *Store) janitor(interval time.Duration) {
	defer close(s.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) dispatch(notices []notice) {
	for _, n := range notices {
		for _, fn := range n.targets {
			fn(n.res)
		}
	}
}
