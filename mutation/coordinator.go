package mutation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quokkaq/go-query-cache/querycache"
)

// Store is the slice of the cache store the coordinator needs: optimistic
// value swaps for snapshot/rollback and scoped invalidation on commit.
// *store.Store satisfies it.
type Store interface {
	SetOptimistic(key querycache.QueryKey, update func(prev any) any) any
	InvalidateKeys(keys []querycache.QueryKey)
	Invalidate(pred querycache.Predicate)
}

// Target pairs an optimistic target key with the local update applied to its
// cached value before the write is confirmed.
type Target struct {
	Key    querycache.QueryKey
	Update func(prev any) any
}

// InvalidationSet names the cache entries a committed mutation may have made
// stale. Keys are exact matches computed from the mutation's result payload.
// Prefixes are the broad escape hatch and should stay rare: a prefix over a
// whole entity namespace refetches data for scopes the mutation never
// touched.
type InvalidationSet struct {
	Keys     []querycache.QueryKey
	Prefixes []querycache.QueryKey
}

// IsEmpty reports whether the set names no entries.
func (s InvalidationSet) IsEmpty() bool {
	return len(s.Keys) == 0 && len(s.Prefixes) == 0
}

// Spec describes one write operation against the data source.
type Spec struct {
	// Name identifies the mutation in logs and errors, e.g. "endorseAnswer".
	Name string

	// OptimisticTargets are applied to the cache before Execute runs and
	// restored together if it fails.
	OptimisticTargets []Target

	// Execute performs the write. Its result payload must carry enough
	// identifying data (entity ids, scope ids) for Invalidation to narrow
	// its target set.
	Execute func(ctx context.Context) (any, error)

	// Invalidation computes the entries made stale by a successful write,
	// purely from the result payload. Nil means the mutation invalidates
	// nothing.
	Invalidation func(result any) InvalidationSet
}

func (s Spec) name() string {
	if s.Name == "" {
		return "mutation"
	}
	return s.Name
}

func (s Spec) validate() error {
	if s.Execute == nil {
		return fmt.Errorf("mutation: spec %q has no Execute", s.name())
	}
	for i, tgt := range s.OptimisticTargets {
		if tgt.Key.IsZero() {
			return fmt.Errorf("mutation: spec %q target %d has a zero key", s.name(), i)
		}
		if tgt.Update == nil {
			return fmt.Errorf("mutation: spec %q target %d has no Update", s.name(), i)
		}
	}
	return nil
}

// Error reports a failed mutation. The data source failure is available via
// Unwrap; RolledBack records that every optimistic target was restored
// before the error was returned.
type Error struct {
	Mutation   string
	Cause      error
	RolledBack bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("mutation %q failed: %v", e.Mutation, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Mutation lifecycle phases, logged per in-flight mutation. Every mutation
// runs snapshotting, then executing, then exactly one of committing or
// rolling-back.
const (
	phaseSnapshotting = "snapshotting"
	phaseExecuting    = "executing"
	phaseCommitting   = "committing"
	phaseRollingBack  = "rolling-back"
)

// Coordinator executes writes with optimistic local feedback and guaranteed
// consistency recovery: on success it invalidates exactly the entries the
// result payload implicates, on failure it restores every optimistic target
// to its pre-mutation value.
//
// Mutations whose optimistic target sets overlap are serialized: a later
// mutation waits for the earlier one's snapshot to resolve instead of
// interleaving. Disjoint mutations run concurrently.
type Coordinator struct {
	store Store
	log   zerolog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	inflight map[string]struct{}
}

// New creates a Coordinator on top of the given store. Pass zerolog.Nop()
// when lifecycle logging is not wanted.
func New(store Store, logger zerolog.Logger) *Coordinator {
	if store == nil {
		panic("mutation: New requires a store")
	}
	c := &Coordinator{
		store:    store,
		log:      logger,
		inflight: make(map[string]struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

type snapshotEntry struct {
	key  querycache.QueryKey
	prev any
}

// Mutate runs the spec: snapshot and apply optimistic targets, execute the
// write, then commit (scoped invalidation) or roll back (restore all
// snapshots together). A failure always surfaces to the caller as *Error
// after rollback completes; it is never swallowed.
func (c *Coordinator) Mutate(ctx context.Context, spec Spec) (any, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	keys := make([]string, len(spec.OptimisticTargets))
	for i, tgt := range spec.OptimisticTargets {
		keys[i] = tgt.Key.String()
	}
	c.acquire(keys)
	defer c.release(keys)

	log := c.log.With().
		Str("mutation", spec.name()).
		Str("mutation_id", uuid.NewString()).
		Logger()

	log.Debug().Str("phase", phaseSnapshotting).Int("targets", len(spec.OptimisticTargets)).Msg("mutation started")
	snapshot := make([]snapshotEntry, 0, len(spec.OptimisticTargets))
	for _, tgt := range spec.OptimisticTargets {
		prev := c.store.SetOptimistic(tgt.Key, tgt.Update)
		snapshot = append(snapshot, snapshotEntry{key: tgt.Key, prev: prev})
	}

	log.Debug().Str("phase", phaseExecuting).Msg("calling data source")
	result, err := spec.Execute(ctx)
	if err != nil {
		log.Debug().Str("phase", phaseRollingBack).Err(err).Msg("restoring optimistic targets")
		c.rollback(snapshot)
		return nil, &Error{Mutation: spec.name(), Cause: err, RolledBack: len(snapshot) > 0}
	}

	log.Debug().Str("phase", phaseCommitting).Msg("invalidating affected entries")
	if spec.Invalidation != nil {
		c.applyInvalidation(spec.Invalidation(result))
	}
	return result, nil
}

// Run is a type-safe wrapper over Mutate for callers that know the result
// payload type.
func Run[T any](ctx context.Context, c *Coordinator, spec Spec) (T, error) {
	res, err := c.Mutate(ctx, spec)
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, querycache.ErrInvalidResultType
	}
	return v, nil
}

// rollback restores every touched target, newest first, so consumers never
// observe a partially restored state at any single key.
func (c *Coordinator) rollback(snapshot []snapshotEntry) {
	for i := len(snapshot) - 1; i >= 0; i-- {
		prev := snapshot[i].prev
		c.store.SetOptimistic(snapshot[i].key, func(any) any { return prev })
	}
}

func (c *Coordinator) applyInvalidation(set InvalidationSet) {
	if len(set.Keys) > 0 {
		c.store.InvalidateKeys(set.Keys)
	}
	for _, prefix := range set.Prefixes {
		c.store.Invalidate(querycache.PrefixMatch(prefix))
	}
}

func (c *Coordinator) acquire(keys []string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.overlapsLocked(keys) {
		c.cond.Wait()
	}
	for _, k := range keys {
		c.inflight[k] = struct{}{}
	}
}

func (c *Coordinator) release(keys []string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	for _, k := range keys {
		delete(c.inflight, k)
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *Coordinator) overlapsLocked(keys []string) bool {
	for _, k := range keys {
		if _, ok := c.inflight[k]; ok {
			return true
		}
	}
	return false
}
