package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps challenge identifiers to game engines. It is constructed at
// bootstrap and injected wherever engines are resolved; registration after
// startup is allowed but engines are immutable once registered.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// Register adds an engine under its challenge name.
func (r *Registry) Register(engine Engine) error {
	if engine == nil {
		return fmt.Errorf("engine is required")
	}
	name := engine.Name()
	if name == "" {
		return fmt.Errorf("engine name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("engine %q is already registered", name)
	}
	r.engines[name] = engine
	return nil
}

// Lookup resolves an engine by challenge name.
func (r *Registry) Lookup(name string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[name]
	return engine, ok
}

// Names returns the registered challenge names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
