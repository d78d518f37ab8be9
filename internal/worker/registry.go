package worker

import (
	"fmt"
	"sort"
	"sync"

	"workforce/pkg/models"
)

// Registry is the closed set of worker capabilities. Routing is an
// explicit lookup against the registered declarations.
type Registry struct {
	mu      sync.RWMutex
	caps    map[string]models.Capability
	workers map[string]Worker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:    make(map[string]models.Capability),
		workers: make(map[string]Worker),
	}
}

// Register adds a worker under its capability declaration. Registering
// a duplicate name is an error.
func (r *Registry) Register(cap models.Capability, w Worker) error {
	if cap.Name == "" {
		return fmt.Errorf("capability missing name")
	}
	if w == nil {
		return fmt.Errorf("worker %s is nil", cap.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[cap.Name]; exists {
		return fmt.Errorf("worker %s already registered", cap.Name)
	}
	r.caps[cap.Name] = cap
	r.workers[cap.Name] = w
	return nil
}

// Get returns the worker registered under the given type name.
func (r *Registry) Get(name string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return w, ok
}

// Capability returns the capability declaration for a worker type.
func (r *Registry) Capability(name string) (models.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Capabilities returns all registered capabilities sorted by name.
func (r *Registry) Capabilities() []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]models.Capability, 0, len(r.caps))
	for _, c := range r.caps {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].Name < caps[j].Name })
	return caps
}

// Route returns the non-synthesis capabilities whose keywords or
// categories match the goal, sorted by name for determinism. An empty
// result means the goal is unroutable.
func (r *Registry) Route(goal string) []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.Capability
	for _, c := range r.caps {
		if c.Synthesis {
			continue
		}
		if c.Matches(goal) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched
}

// Synthesizer returns the registered synthesis capability, if any.
// When multiple are registered the first by name wins.
func (r *Registry) Synthesizer() (models.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, c := range r.caps {
		if c.Synthesis {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return models.Capability{}, false
	}
	sort.Strings(names)
	return r.caps[names[0]], true
}
