package store

import "sync"

// Registry tracks the live Store for each configured value store. There is
// no implicit global state; the engine constructs one registry and injects
// it into the services that need it.
type Registry interface {
	// GetOrCreate returns the store for name, creating an empty one if
	// none exists yet.
	GetOrCreate(name string) *Store

	// Get returns the store for name if it exists.
	Get(name string) (*Store, bool)

	// Delete removes the store and its data.
	Delete(name string)

	// Names returns the registered store names.
	Names() []string
}

type registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() Registry {
	return &registry{stores: make(map[string]*Store)}
}

var _ Registry = (*registry)(nil)

func (r *registry) GetOrCreate(name string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s
	}
	s := NewStore(name)
	r.stores[name] = s
	return s
}

func (r *registry) Get(name string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

func (r *registry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, name)
}

func (r *registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	return names
}
