package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quokkaq/go-query-cache/querycache"
)

// fakeStore records coordinator interactions for assertions.
type fakeStore struct {
	mu              sync.Mutex
	values          map[string]any
	optimisticOrder []string
	invalidated     []string
	prefixCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]any)}
}

func (f *fakeStore) SetOptimistic(key querycache.QueryKey, update func(prev any) any) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	canonical := key.String()
	prev := f.values[canonical]
	f.values[canonical] = update(prev)
	f.optimisticOrder = append(f.optimisticOrder, canonical)
	return prev
}

func (f *fakeStore) InvalidateKeys(keys []querycache.QueryKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.invalidated = append(f.invalidated, k.String())
	}
}

func (f *fakeStore) Invalidate(pred querycache.Predicate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixCalls++
}

func (f *fakeStore) value(key querycache.QueryKey) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key.String()]
}

func (f *fakeStore) invalidatedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

func newTestCoordinator(fs *fakeStore) *Coordinator {
	return New(fs, zerolog.Nop())
}

func TestMutate_CommitAppliesNarrowInvalidation(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)

	course := querycache.Key("courseMetrics", "C1")
	dashI1 := querycache.Key("instructorDashboard", "I1")
	dashI2 := querycache.Key("instructorDashboard", "I2")

	type endorseResult struct {
		CourseID      string
		InstructorIDs []string
	}

	result, err := c.Mutate(context.Background(), Spec{
		Name: "endorseAnswer",
		OptimisticTargets: []Target{
			{Key: course, Update: func(any) any { return "endorsed-metrics" }},
		},
		Execute: func(ctx context.Context) (any, error) {
			return endorseResult{CourseID: "C1", InstructorIDs: []string{"I1", "I2"}}, nil
		},
		Invalidation: func(res any) InvalidationSet {
			r := res.(endorseResult)
			set := InvalidationSet{Keys: []querycache.QueryKey{querycache.Key("courseMetrics", r.CourseID)}}
			for _, id := range r.InstructorIDs {
				set.Keys = append(set.Keys, querycache.Key("instructorDashboard", id))
			}
			return set
		},
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if result.(endorseResult).CourseID != "C1" {
		t.Errorf("unexpected result payload: %+v", result)
	}

	if got := fs.value(course); got != "endorsed-metrics" {
		t.Errorf("optimistic value = %v, want endorsed-metrics", got)
	}

	want := []string{course.String(), dashI1.String(), dashI2.String()}
	got := fs.invalidatedKeys()
	if len(got) != len(want) {
		t.Fatalf("invalidated %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("invalidated[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	// The uninvolved instructor I3 never appears in the set.
	for _, k := range got {
		if k == querycache.Key("instructorDashboard", "I3").String() {
			t.Error("mutation invalidated an unaffected instructor dashboard")
		}
	}
}

func TestMutate_FailureRollsBackAllTargets(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)

	keyA := querycache.Key("course", "C1")
	keyB := querycache.Key("courseMetrics", "C1")
	fs.values[keyA.String()] = "a-original"
	fs.values[keyB.String()] = "b-original"

	cause := errors.New("backend rejected write")
	_, err := c.Mutate(context.Background(), Spec{
		Name: "renameCourse",
		OptimisticTargets: []Target{
			{Key: keyA, Update: func(any) any { return "a-optimistic" }},
			{Key: keyB, Update: func(any) any { return "b-optimistic" }},
		},
		Execute: func(ctx context.Context) (any, error) {
			// Both optimistic values must be visible mid-flight.
			if fs.value(keyA) != "a-optimistic" || fs.value(keyB) != "b-optimistic" {
				t.Error("optimistic updates not applied before execute")
			}
			return nil, cause
		},
	})

	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("error = %v, want *mutation.Error", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error does not wrap cause: %v", err)
	}
	if !mErr.RolledBack {
		t.Error("RolledBack = false, want true")
	}

	// Rollback is all-or-nothing: both targets restored, never just one.
	if got := fs.value(keyA); got != "a-original" {
		t.Errorf("keyA = %v, want a-original", got)
	}
	if got := fs.value(keyB); got != "b-original" {
		t.Errorf("keyB = %v, want b-original", got)
	}
	if len(fs.invalidatedKeys()) != 0 {
		t.Errorf("failed mutation invalidated keys: %v", fs.invalidatedKeys())
	}
}

func TestMutate_PrefixEscapeHatch(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)

	_, err := c.Mutate(context.Background(), Spec{
		Name:    "purgeCourse",
		Execute: func(ctx context.Context) (any, error) { return "ok", nil },
		Invalidation: func(any) InvalidationSet {
			return InvalidationSet{Prefixes: []querycache.QueryKey{querycache.Key("search", "C1")}}
		},
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if fs.prefixCalls != 1 {
		t.Errorf("prefix invalidations = %d, want 1", fs.prefixCalls)
	}
}

func TestMutate_SpecValidation(t *testing.T) {
	c := newTestCoordinator(newFakeStore())

	tests := []struct {
		name string
		spec Spec
	}{
		{
			name: "missing execute",
			spec: Spec{Name: "noop"},
		},
		{
			name: "target without update",
			spec: Spec{
				Name:              "bad-target",
				OptimisticTargets: []Target{{Key: querycache.Key("course", "C1")}},
				Execute:           func(ctx context.Context) (any, error) { return nil, nil },
			},
		},
		{
			name: "target with zero key",
			spec: Spec{
				Name:              "zero-key",
				OptimisticTargets: []Target{{Update: func(prev any) any { return prev }}},
				Execute:           func(ctx context.Context) (any, error) { return nil, nil },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Mutate(context.Background(), tt.spec); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMutate_OverlappingMutationsSerialize(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	key := querycache.Key("course", "C1")

	firstInFlight := make(chan struct{})
	releaseFirst := make(chan struct{})
	secondDone := make(chan struct{})

	go func() {
		_, _ = c.Mutate(context.Background(), Spec{
			Name:              "first",
			OptimisticTargets: []Target{{Key: key, Update: func(any) any { return "first" }}},
			Execute: func(ctx context.Context) (any, error) {
				close(firstInFlight)
				<-releaseFirst
				return "ok", nil
			},
		})
	}()

	<-firstInFlight
	go func() {
		defer close(secondDone)
		_, _ = c.Mutate(context.Background(), Spec{
			Name:              "second",
			OptimisticTargets: []Target{{Key: key, Update: func(any) any { return "second" }}},
			Execute:           func(ctx context.Context) (any, error) { return "ok", nil },
		})
	}()

	// While the first mutation holds the key, the second must not have
	// touched the store.
	time.Sleep(20 * time.Millisecond)
	if got := fs.value(key); got != "first" {
		t.Fatalf("value = %v, want first (second mutation ran early)", got)
	}

	close(releaseFirst)
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second mutation never ran after first released its keys")
	}
	if got := fs.value(key); got != "second" {
		t.Errorf("value = %v, want second", got)
	}
}

func TestMutate_DisjointMutationsRunConcurrently(t *testing.T) {
	c := newTestCoordinator(newFakeStore())

	bothInFlight := sync.WaitGroup{}
	bothInFlight.Add(2)
	release := make(chan struct{})
	done := make(chan struct{}, 2)

	for _, id := range []string{"C1", "C2"} {
		key := querycache.Key("course", id)
		go func() {
			_, _ = c.Mutate(context.Background(), Spec{
				Name:              "touch",
				OptimisticTargets: []Target{{Key: key, Update: func(prev any) any { return prev }}},
				Execute: func(ctx context.Context) (any, error) {
					bothInFlight.Done()
					<-release
					return "ok", nil
				},
			})
			done <- struct{}{}
		}()
	}

	waited := make(chan struct{})
	go func() {
		bothInFlight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("disjoint mutations did not execute concurrently")
	}
	close(release)
	<-done
	<-done
}

func TestRun_TypedResult(t *testing.T) {
	c := newTestCoordinator(newFakeStore())

	got, err := Run[string](context.Background(), c, Spec{
		Name:    "typed",
		Execute: func(ctx context.Context) (any, error) { return "payload", nil },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "payload" {
		t.Errorf("Run() = %q, want payload", got)
	}

	_, err = Run[int](context.Background(), c, Spec{
		Name:    "typed-mismatch",
		Execute: func(ctx context.Context) (any, error) { return "payload", nil },
	})
	if err != querycache.ErrInvalidResultType {
		t.Errorf("Run() error = %v, want ErrInvalidResultType", err)
	}
}
