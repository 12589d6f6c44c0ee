package risk

import (
	"fmt"
	"sync"
)

// Registry maps risk set names to validator lists. A strategy may name one
// set (riskName) or several (riskList); Resolve returns their union in
// registration order and every validator must admit.
type Registry struct {
	mu   sync.RWMutex
	sets map[string][]Validator
}

func NewRegistry() *Registry {
	return &Registry{sets: make(map[string][]Validator)}
}

func (r *Registry) Register(name string, validators ...Validator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sets[name]; dup {
		return fmt.Errorf("risk: set %q already registered", name)
	}
	r.sets[name] = validators
	return nil
}

// Resolve returns the union of the named sets, preserving name order and
// skipping duplicates by validator name.
func (r *Registry) Resolve(names ...string) ([]Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Validator
	seen := make(map[string]bool)
	for _, name := range names {
		set, ok := r.sets[name]
		if !ok {
			return nil, fmt.Errorf("risk: unknown set %q", name)
		}
		for _, v := range set {
			if seen[v.Name] {
				continue
			}
			seen[v.Name] = true
			out = append(out, v)
		}
	}
	return out, nil
}
