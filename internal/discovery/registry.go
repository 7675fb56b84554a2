package discovery

import (
	"fmt"
	"sync"

	"github.com/BlagoCuljak/ApiPosture/internal/core"
)

// Registry holds the active discoverers. Third-party discoverers register
// through the same path as the built-ins and are folded into the same
// discovery loop.
type Registry struct {
	mu          sync.RWMutex
	discoverers []core.Discoverer
	byName      map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]struct{})}
}

// NewDefaultRegistry returns a registry preloaded with the two built-in
// discovery strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewControllerDiscoverer())
	_ = r.Register(NewMinimalAPIDiscoverer())
	return r
}

func (r *Registry) Register(d core.Discoverer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[d.Name()]; dup {
		return fmt.Errorf("discoverer already registered: %s", d.Name())
	}
	r.byName[d.Name()] = struct{}{}
	r.discoverers = append(r.discoverers, d)
	return nil
}

func (r *Registry) List() []core.Discoverer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Discoverer, len(r.discoverers))
	copy(out, r.discoverers)
	return out
}
