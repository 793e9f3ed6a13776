package di

import (
	"github.com/rs/zerolog"

	"github.com/quokkaq/go-query-cache/mutation"
	"github.com/quokkaq/go-query-cache/quokka"
	"github.com/quokkaq/go-query-cache/store"
)

// Config aggregates the construction options for every wired component.
// Logger is handed to the mutation coordinator; the store and source carry
// their own loggers inside their configs.
type Config struct {
	Store  store.Config
	Source quokka.Config
	Logger zerolog.Logger
}

// DefaultConfig returns the configuration the demo wiring uses.
func DefaultConfig() Config {
	return Config{
		Store:  store.DefaultConfig(),
		Source: quokka.DefaultConfig(),
		Logger: zerolog.Nop(),
	}
}

// Container wires the cache store, mutation coordinator, and the mock
// QuokkaQ data source into one ready-to-use unit. It manages singleton
// instances; Close releases the store's background goroutines.
type Container struct {
	store       *store.Store
	coordinator *mutation.Coordinator
	source      *quokka.Source
	config      Config
}

// NewContainer creates a new DI container with the provided configuration.
func NewContainer(config Config) (*Container, error) {
	st, err := store.New(config.Store)
	if err != nil {
		return nil, err
	}

	return &Container{
		store:       st,
		coordinator: mutation.New(st, config.Logger),
		source:      quokka.New(config.Source),
		config:      config,
	}, nil
}

// NewContainerWithDefaults creates a new DI container using default
// configuration. This is a convenience constructor for typical use cases
// where custom configuration is not required.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

// Store returns the singleton cache store instance.
func (c *Container) Store() *store.Store {
	return c.store
}

// Coordinator returns the singleton mutation coordinator instance.
func (c *Container) Coordinator() *mutation.Coordinator {
	return c.coordinator
}

// Source returns the singleton mock data source instance.
func (c *Container) Source() *quokka.Source {
	return c.source
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// Close shuts down the store's background goroutines. The container is
// unusable afterwards.
func (c *Container) Close() {
	c.store.Close()
}
