// Error taxonomy for the search harness.
//
// Configuration problems (bad ranges, unknown scales, colliding keys) are
// fatal at construction time and never surface during a run. Dispatch and
// worker-result problems are absorbed into the affected trial's record.

package shadho

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of all construction-time errors. Every error
// returned by a space, tree, or driver constructor wraps it, so callers can
// test with a single errors.Is.
var ErrConfiguration = errors.New("configuration error")

var (
	// ErrInvalidRange is returned when a distribution's bounds are empty or
	// inverted (lo >= hi) or a categorical set has no members.
	ErrInvalidRange = fmt.Errorf("%w: invalid range", ErrConfiguration)

	// ErrInvalidScale is returned for an unrecognized scale name.
	ErrInvalidScale = fmt.Errorf("%w: invalid scale", ErrConfiguration)

	// ErrDuplicateKey is returned when two sibling entries in a search-space
	// spec would produce the same output key.
	ErrDuplicateKey = fmt.Errorf("%w: duplicate key", ErrConfiguration)
)

// DispatchError wraps a transport failure to enqueue a trial. The driver
// retries submission with backoff; a trial whose retries are exhausted is
// marked failed and its compute-class slot released.
type DispatchError struct {
	TrialID string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch trial %s: %v", e.TrialID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// WorkerResultError reports a completion payload that is missing a numeric
// loss field. The trial is marked failed; the driver continues.
type WorkerResultError struct {
	TrialID string
	Reason  string
}

func (e *WorkerResultError) Error() string {
	return fmt.Sprintf("result for trial %s: %s", e.TrialID, e.Reason)
}
