package shadho

import (
	"hash/fnv"
	"math/rand"
)

// SearchKey uniquely identifies a reproducible search run. Two runs with the
// same SearchKey and identical configuration draw identical sample
// sequences.
type SearchKey int64

// NewSearchKey creates a SearchKey from a seed value.
func NewSearchKey(seed int64) SearchKey {
	return SearchKey(seed)
}

// SubsystemDriver is the RNG subsystem for driver-level decisions
// (allocation tie-breaking).
const SubsystemDriver = "driver"

// SubsystemClass returns the RNG subsystem name for a compute class. Each
// class samples its tree from its own stream, so adding a class never
// perturbs another class's draws.
func SubsystemClass(name string) string {
	return "class/" + name
}

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem. Each subsystem's seed is the master seed XOR a 64-bit FNV-1a
// hash of the subsystem name.
//
// Not thread-safe; the driver loop is the sole caller.
type PartitionedRNG struct {
	key        SearchKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SearchKey.
func NewPartitionedRNG(key SearchKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the deterministically-seeded RNG for the named
// subsystem. The same name always returns the same *rand.Rand instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SearchKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SearchKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
