package shadho

import (
	"fmt"
	"sort"
)

// Allocator decides the order in which compute classes are offered new
// trials each driver iteration. The contract: every class with spare
// capacity must eventually be offered work, whatever the policy.
type Allocator interface {
	Order(classes []*ComputeClass) []*ComputeClass
}

// RoundRobinAllocator rotates the starting class each iteration so no class
// is starved. This is the default policy.
type RoundRobinAllocator struct {
	cursor int
}

func (a *RoundRobinAllocator) Order(classes []*ComputeClass) []*ComputeClass {
	if len(classes) == 0 {
		return nil
	}
	out := make([]*ComputeClass, 0, len(classes))
	start := a.cursor % len(classes)
	for i := 0; i < len(classes); i++ {
		out = append(out, classes[(start+i)%len(classes)])
	}
	a.cursor++
	return out
}

// WeightedAllocator offers classes in descending order of spare capacity, so
// the emptiest class refills first. Unbounded classes sort last; they can
// always absorb work. Ties keep configuration order (stable sort) and every
// class still appears in the result, so none starves.
type WeightedAllocator struct{}

func (a *WeightedAllocator) Order(classes []*ComputeClass) []*ComputeClass {
	out := make([]*ComputeClass, len(classes))
	copy(out, classes)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Spare(), out[j].Spare()
		if si < 0 {
			return false
		}
		if sj < 0 {
			return true
		}
		return si > sj
	})
	return out
}

// IsValidAllocator reports whether name is a recognized allocation policy.
// Valid names: "round-robin" (default), "weighted". Empty string defaults to
// round-robin.
func IsValidAllocator(name string) bool {
	switch name {
	case "", "round-robin", "weighted":
		return true
	}
	return false
}

// NewAllocator creates an Allocator by name. Callers validate user input
// with IsValidAllocator first; an unrecognized name here is a programmer
// error and panics.
func NewAllocator(name string) Allocator {
	switch name {
	case "", "round-robin":
		return &RoundRobinAllocator{}
	case "weighted":
		return &WeightedAllocator{}
	default:
		panic(fmt.Sprintf("unknown allocator %q", name))
	}
}
