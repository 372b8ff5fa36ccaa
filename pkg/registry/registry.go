package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/ports"
)

// Target bundles what is needed to fuzz one protocol implementation.
type Target struct {
	Name        string
	Description string
	// StateModel builds a fresh state model. It is called once per engine.
	StateModel func() (*domain.StateModel, error)
	// Endpoint builds the transport, or nil when the caller supplies one.
	Endpoint func() (ports.Endpoint, error)
}

// Registry manages the available targets.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]Target),
	}
}

// Register adds a target to the registry.
// If a target with the same name exists, it is overwritten.
func (r *Registry) Register(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t.Name] = t
}

// Get looks up a target by name.
// Returns an error if the target is not found.
func (r *Registry) Get(name string) (Target, error) {
	r.mu.RLock()
	t, ok := r.targets[name]
	r.mu.RUnlock()

	if !ok {
		return Target{}, fmt.Errorf("target not found: %s", name)
	}
	return t, nil
}

// Names returns the registered target names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
