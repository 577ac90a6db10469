package reference

import (
	"fmt"
	"sync"
)

// Registry holds the probes consulted by the scanner. Kinds are unique.
type Registry struct {
	mu     sync.RWMutex
	probes []Probe
	byKind map[string]Probe
}

func NewRegistry(probes ...Probe) (*Registry, error) {
	r := &Registry{byKind: make(map[string]Probe)}
	for _, p := range probes {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Probe) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := p.Kind()
	if kind == "" {
		return fmt.Errorf("reference probe with empty kind")
	}
	if _, exists := r.byKind[kind]; exists {
		return fmt.Errorf("reference probe for %q already registered", kind)
	}
	r.byKind[kind] = p
	r.probes = append(r.probes, p)
	return nil
}

// Probes returns the registered probes in registration order.
func (r *Registry) Probes() []Probe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Probe(nil), r.probes...)
}

func (r *Registry) Probe(kind string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byKind[kind]
	return p, ok
}
