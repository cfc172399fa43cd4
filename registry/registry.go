// Package registry maps service names to live server instances.
//
// Two implementations: EtcdRegistry for real deployments (TTL leases, watch
// streams) and StaticRegistry for fixed topologies and tests.
package registry

type ServiceInstance struct {
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}
