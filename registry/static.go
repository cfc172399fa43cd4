package registry

import (
	"fmt"
	"sync"
)

// StaticRegistry holds a fixed, in-process instance list. It serves two
// cases: deployments with a known topology that do not run etcd, and tests.
// TTLs are ignored — entries live until Deregister.
type StaticRegistry struct {
	mu        sync.RWMutex
	instances map[string][]ServiceInstance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{instances: make(map[string][]ServiceInstance)}
}

func (r *StaticRegistry) Register(serviceName string, instance ServiceInstance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.instances[serviceName] {
		if existing.Addr == instance.Addr {
			return fmt.Errorf("registry: %s already registered for %s", instance.Addr, serviceName)
		}
	}
	r.instances[serviceName] = append(r.instances[serviceName], instance)
	return nil
}

func (r *StaticRegistry) Deregister(serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.instances[serviceName][:0]
	for _, inst := range r.instances[serviceName] {
		if inst.Addr != addr {
			kept = append(kept, inst)
		}
	}
	r.instances[serviceName] = kept
	return nil
}

func (r *StaticRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instances := make([]ServiceInstance, len(r.instances[serviceName]))
	copy(instances, r.instances[serviceName])
	return instances, nil
}

// Watch never fires: a static topology does not change behind the caller's
// back. The channel is kept open so consumers can select on it uniformly.
func (r *StaticRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	return make(chan []ServiceInstance)
}
