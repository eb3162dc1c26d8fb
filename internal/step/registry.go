package step

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps step and "how" names to phase factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]map[string]Factory
}

// NewRegistry allocates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]map[string]Factory)}
}

// Register adds a factory for the given step and how.
func (r *Registry) Register(step, how string, factory Factory) error {
	if !IsValidName(step) {
		return fmt.Errorf("registry: unknown step %q", step)
	}
	if how == "" {
		return fmt.Errorf("registry: how required")
	}
	if factory == nil {
		return fmt.Errorf("registry: factory required for %s/%s", step, how)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.factories[step] == nil {
		r.factories[step] = make(map[string]Factory)
	}
	if _, exists := r.factories[step][how]; exists {
		return fmt.Errorf("registry: %s plugin %s already registered", step, how)
	}
	r.factories[step][how] = factory
	return nil
}

// Lookup fetches the factory for step and how.
func (r *Registry) Lookup(step, how string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[step][how]
	return factory, ok
}

// Methods returns the sorted how names registered for step.
func (r *Registry) Methods(step string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.factories[step]))
	for how := range r.factories[step] {
		methods = append(methods, how)
	}
	sort.Strings(methods)
	return methods
}

// Plugins is the process-wide registry populated by plugin packages at init.
var Plugins = NewRegistry()

// MustRegister registers a factory in Plugins and panics on conflict.
func MustRegister(step, how string, factory Factory) {
	if err := Plugins.Register(step, how, factory); err != nil {
		panic(err)
	}
}
