package schema

import (
	"fmt"
	"sync"
)

// Schema is a named set of structural, format, and semantic rules.
// Implementations must be stateless and safe for concurrent use.
type Schema interface {
	// Name returns the schema identifier (e.g. "dreamResponse").
	Name() string

	// Structural checks required fields and types.
	Structural(candidate map[string]any) []ValidationError

	// Format checks field-level bounds.
	Format(candidate map[string]any) []ValidationError

	// Semantic checks cross-field invariants.
	Semantic(candidate map[string]any) []ValidationError

	// Default returns the schema default for a field path, if one exists.
	Default(field string) (any, bool)

	// Skeleton returns a minimal candidate that validates cleanly.
	// Used by repair placeholders and the emergency fallback.
	Skeleton(id string) map[string]any

	// Describe returns a human-readable schema summary used in corrective
	// prompts sent back to providers.
	Describe() string
}

// Registry maps schema names to implementations.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates a registry pre-populated with the built-in schemas.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]Schema)}
	r.Register(NewDreamResponseSchema())
	return r
}

// Register adds or replaces a schema.
func (r *Registry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Name()] = s
}

// Get returns the schema by name.
func (r *Registry) Get(name string) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// Names returns the registered schema names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	return names
}
