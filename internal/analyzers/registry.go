package analyzers

import (
	"fmt"
	"sort"
)

// Registry maps analyzer identifiers to adapters. Backends are registered in
// a static table; nothing is discovered at runtime.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry { return &Registry{adapters: make(map[string]Adapter)} }

func (r *Registry) Register(a Adapter) { r.adapters[a.Name()] = a }

// Default returns the registry with all built-in backends.
func Default() *Registry {
	r := NewRegistry()
	r.Register(&Mythril{})
	r.Register(&Slither{})
	r.Register(&Solhint{})
	r.Register(&Ethor{})
	return r
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown analyzer %q (have %v)", name, r.Names())
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
