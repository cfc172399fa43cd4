package loadbalance

import (
	"errors"
	"sync/atomic"

	"linkrpc/registry"
)

// ErrNoInstances is returned when the registry has no live instance for the
// requested service.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// RoundRobin distributes calls evenly across instances in order, using an
// atomic counter for lock-free selection.
type RoundRobin struct {
	counter atomic.Int64
}

func (b *RoundRobin) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	index := b.counter.Add(1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobin) Name() string {
	return "RoundRobin"
}
