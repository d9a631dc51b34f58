package service

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry manages the collection of loaded services.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewRegistry creates a new service registry.
func NewRegistry(services map[string]*Service) *Registry {
	return &Registry{
		services: services,
	}
}

// Get retrieves a service by name.
func (r *Registry) Get(name string) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service '%s' not found", name)
	}

	return svc, nil
}

// List returns all service names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Count returns the number of services.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.services)
}

// MaxTimeout returns the longest deployment timeout of any service.
func (r *Registry) MaxTimeout() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var longest time.Duration
	for _, svc := range r.services {
		if svc.Timeout > longest {
			longest = svc.Timeout
		}
	}
	return longest
}
