package storage

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
)

// Factory opens a store from the storage section of the configuration
type Factory func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error)

// Registry maps driver names to store factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "storage driver %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Open creates a store for cfg.Driver. Stores that implement Migrator are
// migrated when cfg.AutoMigrate is set.
func (r *Registry) Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Driver]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "storage driver %s not found", cfg.Driver).
			WithDetail("available", r.Drivers())
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("destination", cfg.Driver))

	store, err := factory(ctx, cfg, logger)
	if err != nil {
		if errors.TypeOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open storage driver "+cfg.Driver)
	}

	if m, ok := store.(Migrator); ok && cfg.AutoMigrate {
		if err := m.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Debug("storage schema ready")
	}

	return store, nil
}

// Drivers returns the registered driver names, sorted
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register registers a factory in the global registry. It panics on a
// duplicate name since registration happens from init functions.
func Register(name string, factory Factory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// Open opens a store from the global registry
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	return globalRegistry.Open(ctx, cfg, logger)
}

// Drivers lists the drivers in the global registry
func Drivers() []string {
	return globalRegistry.Drivers()
}
