package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds every model the admin knows about, keyed by model name
type Registry struct {
	schemas map[string]*ModelSchema
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*ModelSchema),
	}
}

// Register validates and stores a model
func (r *Registry) Register(m *ModelSchema) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[m.Name]; exists {
		return fmt.Errorf("model %s is already registered", m.Name)
	}
	r.schemas[m.Name] = m
	return nil
}

// Get retrieves a model by name
func (r *Registry) Get(name string) (*ModelSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.schemas[name]
	return m, exists
}

// All returns a copy of all registered models
func (r *Registry) All() map[string]*ModelSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ModelSchema, len(r.schemas))
	for k, v := range r.schemas {
		result[k] = v
	}
	return result
}

// List returns the registered model names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered models
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// ValidateRelations checks that every fk and m2m column points at a registered model.
// It runs after all models are registered so forward references are allowed.
func (r *Registry) ValidateRelations() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.schemas) {
		m := r.schemas[name]
		for _, c := range m.Columns {
			if !c.Type.IsRelation() {
				continue
			}
			if _, ok := r.schemas[c.Related]; !ok {
				return fmt.Errorf("model %s: column %s references unknown model %s", m.Name, c.Name, c.Related)
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]*ModelSchema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
