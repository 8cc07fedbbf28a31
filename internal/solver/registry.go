package solver

import (
	"fmt"
	"sort"
	"sync"
)

// Algorithm is a named solver strategy backed by a Runner
type Algorithm struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Runner      Runner `json:"-"`
}

// Registry manages the available solver algorithms
type Registry struct {
	mu         sync.RWMutex
	algorithms map[string]Algorithm
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{algorithms: make(map[string]Algorithm)}
}

// Register adds an algorithm; codes must be unique
func (r *Registry) Register(a Algorithm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Code == "" {
		return fmt.Errorf("algorithm code cannot be empty")
	}
	if a.Runner == nil {
		return fmt.Errorf("algorithm %s has no runner", a.Code)
	}
	if _, exists := r.algorithms[a.Code]; exists {
		return fmt.Errorf("algorithm %s is already registered", a.Code)
	}
	r.algorithms[a.Code] = a
	return nil
}

// Get returns an algorithm by code
func (r *Registry) Get(code string) (Algorithm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.algorithms[code]
	return a, ok
}

// List returns all algorithms sorted by code
func (r *Registry) List() []Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Algorithm, 0, len(r.algorithms))
	for _, a := range r.algorithms {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list
}
