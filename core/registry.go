package core

import (
	"fmt"
	"strings"
	"sync"
)

// ServiceRegistry keeps the set of known services. Registration order is
// preserved so listing is deterministic; there is no removal.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]Service
	order    []string
}

func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]Service)}
}

func (r *ServiceRegistry) Register(service Service) error {
	if service == nil {
		return fmt.Errorf("core: service is nil")
	}
	name := strings.TrimSpace(service.Name())
	if name == "" {
		return fmt.Errorf("core: service name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("core: service already registered: %s", name)
	}
	r.services[name] = service
	r.order = append(r.order, name)
	return nil
}

func (r *ServiceRegistry) Get(name string) (Service, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	service, ok := r.services[name]
	r.mu.RUnlock()
	return service, ok
}

func (r *ServiceRegistry) List() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	services := make([]Service, 0, len(r.order))
	for _, name := range r.order {
		services = append(services, r.services[name])
	}
	return services
}
