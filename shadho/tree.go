// SearchTree composes named spaces and subtrees into a hierarchical search
// domain. Two flags shape sampling: an optional tree is omitted from the
// output entirely on half of all samples, and an exclusive tree contributes
// exactly one of its children per sample, with the chosen branch's keys
// flattened into the tree's own mapping.

package shadho

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// SearchTree is an interior node of the search domain.
type SearchTree struct {
	names     []string // child names in sampling order (sorted for determinism)
	children  map[string]Node
	optional  bool
	exclusive bool
}

// ScopeOption configures a SearchTree at construction.
type ScopeOption func(*SearchTree)

// WithOptional marks the tree optional: each Sample call independently omits
// the whole subtree with probability 1/2.
func WithOptional() ScopeOption {
	return func(t *SearchTree) { t.optional = true }
}

// WithExclusive marks the tree exclusive: each Sample selects exactly one
// child, never two siblings jointly.
func WithExclusive() ScopeOption {
	return func(t *SearchTree) { t.exclusive = true }
}

// NewScope builds a SearchTree from named children. Children sample in
// sorted-name order so a fixed seed reproduces the same assignment. An
// exclusive scope with no children fails with ErrConfiguration.
func NewScope(children map[string]Node, opts ...ScopeOption) (*SearchTree, error) {
	t := &SearchTree{children: make(map[string]Node, len(children))}
	for _, opt := range opts {
		opt(t)
	}
	if t.exclusive && len(children) == 0 {
		return nil, fmt.Errorf("%w: exclusive scope with no children", ErrConfiguration)
	}
	for name, child := range children {
		if child == nil {
			return nil, fmt.Errorf("%w: nil child %q", ErrConfiguration, name)
		}
		t.names = append(t.names, name)
		t.children[name] = child
	}
	sort.Strings(t.names)
	return t, nil
}

// Optional reports whether this tree may be omitted from a sample.
func (t *SearchTree) Optional() bool { return t.optional }

// Exclusive reports whether this tree selects exactly one child per sample.
func (t *SearchTree) Exclusive() bool { return t.exclusive }

// Children returns the child names in sampling order.
func (t *SearchTree) Children() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Child returns the named child node.
func (t *SearchTree) Child(name string) (Node, bool) {
	c, ok := t.children[name]
	return c, ok
}

func (t *SearchTree) node() {}

// Sample draws one parameter assignment. The boolean is false when the tree
// is optional and this call excluded it; the caller omits the key entirely
// rather than recording a null placeholder.
func (t *SearchTree) Sample(rng *rand.Rand) (map[string]any, bool) {
	if t.optional && rng.Intn(2) == 0 {
		return nil, false
	}
	return t.sampleBody(rng), true
}

// sampleBody samples the tree's contents, assuming any optional gate has
// already been passed.
func (t *SearchTree) sampleBody(rng *rand.Rand) map[string]any {
	if t.exclusive {
		return t.sampleExclusive(rng)
	}
	out := make(map[string]any, len(t.names))
	for _, name := range t.names {
		switch c := t.children[name].(type) {
		case *SearchSpace:
			out[name] = c.Sample(rng)
		case *SearchTree:
			if m, ok := c.Sample(rng); ok {
				out[name] = m
			}
		}
	}
	return out
}

// sampleExclusive draws a uniform choice among currently eligible children.
// An optional child draws its inclusion bit first; excluded children are
// skipped when building the choice set. The chosen branch's keys merge
// directly into this tree's mapping, not nested under the branch name. Zero
// eligible children degenerates to an empty result.
func (t *SearchTree) sampleExclusive(rng *rand.Rand) map[string]any {
	eligible := make([]string, 0, len(t.names))
	for _, name := range t.names {
		if sub, ok := t.children[name].(*SearchTree); ok && sub.optional {
			if rng.Intn(2) == 0 {
				continue
			}
		}
		eligible = append(eligible, name)
	}
	if len(eligible) == 0 {
		return map[string]any{}
	}
	name := eligible[rng.Intn(len(eligible))]
	switch c := t.children[name].(type) {
	case *SearchSpace:
		return map[string]any{name: c.Sample(rng)}
	case *SearchTree:
		return c.sampleBody(rng)
	default:
		return map[string]any{}
	}
}

// Cardinality reports the number of distinct assignments this tree can
// produce and whether that number is finite. Only trees whose every
// reachable leaf is constant or discrete are finite; the driver uses this
// for exhaustion detection. An optional root counts absence as one extra
// outcome.
func (t *SearchTree) Cardinality() (uint64, bool) {
	n, finite := t.outcomes()
	if !finite {
		return 0, false
	}
	if t.optional {
		n = satAdd(n, 1)
	}
	return n, true
}

func (t *SearchTree) outcomes() (uint64, bool) {
	if t.exclusive {
		// One branch per sample: outcomes add. The empty result is reachable
		// only when every child can decline selection.
		var total uint64
		allOptional := len(t.names) > 0
		for _, name := range t.names {
			n, finite := t.children[name].outcomes()
			if !finite {
				return 0, false
			}
			total = satAdd(total, n)
			sub, ok := t.children[name].(*SearchTree)
			if !ok || !sub.optional {
				allOptional = false
			}
		}
		if allOptional {
			total = satAdd(total, 1)
		}
		return total, true
	}

	total := uint64(1)
	for _, name := range t.names {
		n, finite := t.children[name].outcomes()
		if !finite {
			return 0, false
		}
		if sub, ok := t.children[name].(*SearchTree); ok && sub.optional {
			n = satAdd(n, 1) // absence is a distinct outcome
		}
		total = satMul(total, n)
	}
	return total, true
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}
