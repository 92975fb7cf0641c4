package shadho

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ComputeClass is a named partition of the worker fleet with a shared
// resource characteristic (e.g. gpu_name = "TITAN X") and a bound on
// concurrently outstanding trials. Each class drives its own search tree
// from its own RNG stream.
//
// The class only tracks its slot count; the driver decides when to acquire
// and release. Acquire/release are mutex-guarded so completions processed
// while the refill loop runs can never push the count past MaxTasks.
type ComputeClass struct {
	ID       string
	Name     string
	Resource string
	Value    string
	// MaxTasks bounds concurrently outstanding trials; 0 means unbounded.
	MaxTasks int
	Tree     *SearchTree

	mu     sync.Mutex
	active int
}

// NewComputeClass creates a compute class over the given search tree. The
// id is a fresh UUID so task tags survive class renames.
func NewComputeClass(name, resource, value string, maxTasks int, tree *SearchTree) (*ComputeClass, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: compute class with empty name", ErrConfiguration)
	}
	if maxTasks < 0 {
		return nil, fmt.Errorf("%w: compute class %s max_tasks %d < 0", ErrConfiguration, name, maxTasks)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: compute class %s has no search tree", ErrConfiguration, name)
	}
	return &ComputeClass{
		ID:       uuid.NewString(),
		Name:     name,
		Resource: resource,
		Value:    value,
		MaxTasks: maxTasks,
		Tree:     tree,
	}, nil
}

// TryAcquire claims one trial slot, atomically checked-and-incremented.
// Returns false when the class is at capacity. Unbounded classes always
// succeed.
func (cc *ComputeClass) TryAcquire() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.MaxTasks > 0 && cc.active >= cc.MaxTasks {
		return false
	}
	cc.active++
	return true
}

// Release returns one trial slot on completion or failure. The count never
// goes below zero.
func (cc *ComputeClass) Release() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.active > 0 {
		cc.active--
	}
}

// Active returns the number of outstanding trials.
func (cc *ComputeClass) Active() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.active
}

// Spare returns the remaining slot count, or -1 for unbounded classes.
func (cc *ComputeClass) Spare() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.MaxTasks == 0 {
		return -1
	}
	n := cc.MaxTasks - cc.active
	if n < 0 {
		n = 0
	}
	return n
}
