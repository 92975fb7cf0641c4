// Package store holds the durable trial records of a search run. It stores
// pure data types plus an append-only journal and has no dependency on the
// sampling or scheduling layers.
package store

import "time"

// Status is a trial's lifecycle state.
type Status string

const (
	// StatusPending marks a trial that has been sampled but not yet handed
	// to the dispatch layer.
	StatusPending Status = "pending"
	// StatusRunning marks a trial accepted by the dispatch layer.
	StatusRunning Status = "running"
	// StatusComplete marks a trial whose worker reported a loss.
	StatusComplete Status = "complete"
	// StatusFailed marks a trial that errored, timed out, was orphaned by a
	// restart, or produced an unusable result.
	StatusFailed Status = "failed"
)

// Trial is one concrete parameter assignment and its eventual outcome.
// Terminal trials (complete or failed) are immutable and never deleted; the
// store keeps every record for the audit trail.
type Trial struct {
	TrialID      string         `json:"trial_id"`
	ComputeClass string         `json:"compute_class"`
	Params       map[string]any `json:"params"`
	SubmitTime   time.Time      `json:"submit_time"`
	Status       Status         `json:"status"`
	Loss         float64        `json:"loss,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
	FailReason   string         `json:"fail_reason,omitempty"`
}

// Terminal reports whether the trial has reached a final state.
func (t *Trial) Terminal() bool {
	return t.Status == StatusComplete || t.Status == StatusFailed
}

// clone copies the record so callers and the store never alias each other's
// maps.
func (t *Trial) clone() *Trial {
	c := *t
	if t.Params != nil {
		c.Params = make(map[string]any, len(t.Params))
		for k, v := range t.Params {
			c.Params[k] = v
		}
	}
	if t.Result != nil {
		c.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			c.Result[k] = v
		}
	}
	return &c
}
