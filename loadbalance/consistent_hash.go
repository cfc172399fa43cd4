package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"linkrpc/registry"
)

// ConsistentHash maps keys to instances on a hash ring, so the same key
// lands on the same instance until the ring changes — useful for stateful
// services or local caches.
//
// Each real instance occupies N virtual nodes on the ring. Without virtual
// nodes a handful of instances can cluster on the ring and skew the load;
// 100 virtual nodes per instance gives statistical uniformity.
type ConsistentHash struct {
	mu       sync.RWMutex
	replicas int                                  // virtual nodes per real instance
	ring     []uint32                             // sorted hash values on the ring
	nodes    map[uint32]*registry.ServiceInstance // hash value → instance
}

// NewConsistentHash creates a ring with 100 virtual nodes per instance.
func NewConsistentHash() *ConsistentHash {
	return &ConsistentHash{
		replicas: 100,
		nodes:    make(map[uint32]*registry.ServiceInstance),
	}
}

// Add places an instance onto the ring. Each virtual node hashes
// "{addr}#{i}" to spread the instance across the ring.
func (b *ConsistentHash) Add(instance *registry.ServiceInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	// Keep the ring sorted for binary search in PickKey
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// PickKey finds the instance responsible for key: hash it, then binary
// search for the first node at or after that hash, wrapping to the start of
// the ring when the hash is past every node.
//
// Consistent hashing is key-based, so this sits beside the Balancer
// interface rather than implementing it — the caller supplies an affinity
// key instead of an instance list.
func (b *ConsistentHash) PickKey(key string) (*registry.ServiceInstance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}
