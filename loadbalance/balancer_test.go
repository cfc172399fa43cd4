package loadbalance

import (
	"testing"

	"linkrpc/registry"
)

func instances(addrs ...string) []registry.ServiceInstance {
	out := make([]registry.ServiceInstance, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, registry.ServiceInstance{Addr: addr, Weight: 1})
	}
	return out
}

func TestRoundRobinDistribution(t *testing.T) {
	b := &RoundRobin{}
	insts := instances("a:1", "b:1", "c:1")

	counts := make(map[string]int)
	for i := 0; i < 300; i++ {
		inst, err := b.Pick(insts)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		if counts[addr] != 100 {
			t.Errorf("expected 100 picks for %s, got %d", addr, counts[addr])
		}
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobin{}
	if _, err := b.Pick(nil); err != ErrNoInstances {
		t.Fatalf("expected ErrNoInstances, got %v", err)
	}
}

func TestWeightedRandomRespectsWeights(t *testing.T) {
	b := &WeightedRandom{}
	insts := []registry.ServiceInstance{
		{Addr: "heavy:1", Weight: 9},
		{Addr: "light:1", Weight: 1},
	}

	counts := make(map[string]int)
	for i := 0; i < 2000; i++ {
		inst, err := b.Pick(insts)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	if counts["heavy:1"] <= counts["light:1"] {
		t.Errorf("weight 9 instance picked %d times, weight 1 picked %d",
			counts["heavy:1"], counts["light:1"])
	}
	if counts["light:1"] == 0 {
		t.Error("light instance never picked")
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandom{}
	// Unset weights count as 1 so selection still terminates.
	insts := []registry.ServiceInstance{{Addr: "a:1"}, {Addr: "b:1"}}
	for i := 0; i < 100; i++ {
		if _, err := b.Pick(insts); err != nil {
			t.Fatal(err)
		}
	}
}

func TestConsistentHashStability(t *testing.T) {
	ch := NewConsistentHash()
	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		ch.Add(&registry.ServiceInstance{Addr: addr})
	}

	first, err := ch.PickKey("user-42")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		inst, err := ch.PickKey("user-42")
		if err != nil {
			t.Fatal(err)
		}
		if inst.Addr != first.Addr {
			t.Fatalf("same key landed on %s then %s", first.Addr, inst.Addr)
		}
	}
}

func TestConsistentHashEmpty(t *testing.T) {
	ch := NewConsistentHash()
	if _, err := ch.PickKey("anything"); err != ErrNoInstances {
		t.Fatalf("expected ErrNoInstances, got %v", err)
	}
}
