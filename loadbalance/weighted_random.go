package loadbalance

import (
	"math/rand"

	"linkrpc/registry"
)

// WeightedRandom picks instances with probability proportional to their
// registered weight. Instances with no weight set count as weight 1 so a
// mixed list still routes everywhere.
type WeightedRandom struct{}

func (b *WeightedRandom) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	total := 0
	for _, inst := range instances {
		total += weightOf(inst)
	}

	r := rand.Intn(total)
	for i := range instances {
		r -= weightOf(instances[i])
		if r < 0 {
			return &instances[i], nil
		}
	}

	return &instances[len(instances)-1], nil
}

func (b *WeightedRandom) Name() string {
	return "WeightedRandom"
}

func weightOf(inst registry.ServiceInstance) int {
	if inst.Weight <= 0 {
		return 1
	}
	return inst.Weight
}
