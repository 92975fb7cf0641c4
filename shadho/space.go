package shadho

import "math/rand"

// Node is a member of a search tree: either a SearchSpace leaf or a nested
// SearchTree. The variant is closed so the sampler can handle both cases
// exhaustively.
type Node interface {
	node()

	// outcomes reports how many distinct values this node can produce and
	// whether that count is finite. Continuous leaves are infinite.
	outcomes() (uint64, bool)
}

// SearchSpace is a leaf node: either a constant literal or a Distribution.
// Sampling is a pure function of the node's own state and the supplied RNG.
type SearchSpace struct {
	dist     *Distribution
	constant any
}

// NewSearchSpace wraps a Distribution as a leaf node.
func NewSearchSpace(d *Distribution) *SearchSpace {
	return &SearchSpace{dist: d}
}

// NewConstant creates a leaf that always returns v and consumes no
// randomness.
func NewConstant(v any) *SearchSpace {
	return &SearchSpace{constant: v}
}

// IsConstant reports whether this leaf is a constant literal.
func (s *SearchSpace) IsConstant() bool { return s.dist == nil }

// Sample draws one value. Constants return their literal unchanged.
func (s *SearchSpace) Sample(rng *rand.Rand) any {
	if s.dist == nil {
		return s.constant
	}
	return s.dist.Sample(rng)
}

func (s *SearchSpace) node() {}

func (s *SearchSpace) outcomes() (uint64, bool) {
	if s.dist == nil {
		return 1, true
	}
	switch s.dist.Kind() {
	case KindRandint, KindChoice:
		return uint64(s.dist.Len()), true
	default:
		return 0, false
	}
}
