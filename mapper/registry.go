// Package mapper provides the collection-keyed registry of document mappers
// consulted by the simple query facade, plus ready-made mapper implementations.
package mapper

import (
	"fmt"
	"sync"

	"github.com/pitabwire/docquery/model"
)

// Registry stores document mappers by collection name. It implements
// model.MapperRegistry and is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	mappers map[string]model.DocumentMapper
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		mappers: make(map[string]model.DocumentMapper),
	}
}

// Register adds a mapper for collection. Registering a collection twice or a
// nil mapper returns a configuration error.
func (r *Registry) Register(collection string, m model.DocumentMapper) error {
	if collection == "" {
		return model.NewConfigurationError("mapper: collection name is required")
	}
	if m == nil {
		return model.NewConfigurationError(fmt.Sprintf("mapper: nil mapper for collection %q", collection))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mappers[collection]; exists {
		return model.NewConfigurationError(fmt.Sprintf("mapper: collection %q already has a mapper", collection))
	}
	r.mappers[collection] = m
	return nil
}

// MustRegister is Register that panics, for wiring at startup.
func (r *Registry) MustRegister(collection string, m model.DocumentMapper) {
	if err := r.Register(collection, m); err != nil {
		panic(err)
	}
}

// HasMapper reports whether a mapper is registered for collection.
func (r *Registry) HasMapper(collection string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.mappers[collection]
	return ok
}

// GetMapper returns the mapper for collection, or nil.
func (r *Registry) GetMapper(collection string) model.DocumentMapper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mappers[collection]
}
