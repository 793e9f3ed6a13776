package store

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"github.com/quokkaq/go-query-cache/querycache"
)

// Config holds the construction options for a Store.
type Config struct {
	// DefaultPolicy is applied when a read passes a zero policy.
	DefaultPolicy querycache.Policy

	// JanitorInterval sets how often the background janitor sweeps expired,
	// unsubscribed entries. Zero disables the janitor; expired entries are
	// then evicted lazily on access or by explicit Sweep calls.
	JanitorInterval time.Duration

	// Logger receives debug-level lifecycle events. The zero value is silent.
	Logger zerolog.Logger

	// Clock overrides the time source, used by tests to drive staleness and
	// garbage collection deterministically. Nil means time.Now. Background
	// polling always runs on the wall clock.
	Clock func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPolicy:   querycache.DefaultPolicy(),
		JanitorInterval: time.Minute,
		Logger:          zerolog.Nop(),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if err := c.DefaultPolicy.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.JanitorInterval, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("store: invalid config: %w", err)
	}
	return nil
}
