// Package loadbalance provides strategies for distributing RPC calls across
// multiple service instances.
//
//   - RoundRobin:      stateless services, equal-capacity instances
//   - WeightedRandom:  heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  stateful services requiring cache affinity
package loadbalance

import "linkrpc/registry"

// Balancer picks one instance per call. Implementations must be
// goroutine-safe — Pick runs on every RPC.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name, for logging.
	Name() string
}
