// Package registry maps global service names to call targets for the
// named deployment mode. It replaces the implicit process registry of the
// original design with an explicit, process-local table.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/genserv/internal/fault"
)

// Target is anything a registered name can route calls to. The service
// façade registers its mode strategy here, so a supervisor swapping the
// underlying worker never invalidates the registration.
type Target interface {
	Call(ctx context.Context, fn string, args []any) (any, error)
}

// Registry is a mutex-guarded name -> target table.
// The zero value is not usable; use New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Target
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Target)}
}

// defaultRegistry is the process-wide registry used when no explicit one
// is configured, mirroring the global name table of the original design.
var defaultRegistry = New()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Register binds a name to a target. Registering an already-bound name is
// an error: named services are singletons.
func (r *Registry) Register(name string, t Target) error {
	if name == "" {
		return fmt.Errorf("registry: empty service name")
	}
	if t == nil {
		return fmt.Errorf("registry: nil target for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("registry: %q already registered", name)
	}
	r.entries[name] = t
	return nil
}

// Lookup resolves a name. A miss is a ServiceUnavailable condition - the
// service was never run, or has been stopped.
func (r *Registry) Lookup(name string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.entries[name]
	if !ok {
		return nil, fault.Unavailable(name, "", "", fmt.Errorf("not registered"))
	}
	return t, nil
}

// Unregister removes a name. Removing an absent name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
