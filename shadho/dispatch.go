package shadho

// Completion is one finished task reported by the dispatch layer. On
// success the payload must contain a numeric "loss" field; any additional
// keys pass through untouched into the trial record.
type Completion struct {
	TrialID string
	Success bool
	Payload map[string]any
}

// Dispatcher is the narrow contract to the transport layer that ships task
// descriptions to workers and collects their outputs. Implementations
// outside this module wrap message-queue or job-dispatch systems; the
// in-process LocalDispatcher runs objectives directly.
//
// Submit is fire-and-forget: a non-nil error means the task could not be
// enqueued (the driver wraps it in a DispatchError and retries with
// backoff). Poll is non-blocking and returns an empty slice when nothing
// has finished.
type Dispatcher interface {
	Submit(trialID string, params map[string]any, command string, inputFiles []string) error
	Poll() []Completion
}
