package querycache

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Policy describes per-entry freshness and retention behavior.
type Policy struct {
	// StaleTime is how long after a successful fetch the entry is served
	// without revalidation. A zero StaleTime means every read revalidates.
	StaleTime time.Duration

	// GCTime is how long an entry with no subscribers is retained before
	// eviction. It must be at least StaleTime: a retention window shorter
	// than freshness would evict data that is still considered fresh.
	GCTime time.Duration

	// PollInterval, when positive, schedules a repeating background refetch
	// at that interval for as long as the entry has subscribers.
	PollInterval time.Duration
}

// DefaultPolicy returns the policy applied when callers pass a zero Policy.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime: 30 * time.Second,
		GCTime:    5 * time.Minute,
	}
}

// IsZero reports whether the policy is entirely unset.
func (p Policy) IsZero() bool {
	return p.StaleTime == 0 && p.GCTime == 0 && p.PollInterval == 0
}

// Validate checks the policy invariants. Violations are caller bugs surfaced
// at the call site rather than silently clamped.
func (p Policy) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.StaleTime, validation.Min(time.Duration(0))),
		validation.Field(&p.GCTime, validation.Min(time.Duration(0))),
		validation.Field(&p.PollInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("querycache: invalid policy: %w", err)
	}
	if p.GCTime < p.StaleTime {
		return fmt.Errorf("querycache: invalid policy: GCTime %v is shorter than StaleTime %v", p.GCTime, p.StaleTime)
	}
	return nil
}
