// In-process dispatch. When no transport is configured the driver evaluates
// objectives on a bounded local worker pool, which is also how the test
// scenarios run end to end.

package shadho

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Objective evaluates one parameter assignment and returns the worker-side
// result payload. The payload must contain a numeric "loss" on success.
type Objective func(params map[string]any) (map[string]any, error)

// LocalDispatcher runs objectives on an errgroup-bounded goroutine pool and
// buffers completions until the driver polls for them.
type LocalDispatcher struct {
	objective Objective

	group errgroup.Group

	mu    sync.Mutex
	ready []Completion
}

// NewLocalDispatcher creates a local dispatcher running at most workers
// objectives concurrently. workers <= 0 means one worker.
func NewLocalDispatcher(objective Objective, workers int) *LocalDispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &LocalDispatcher{objective: objective}
	d.group.SetLimit(workers)
	return d
}

// Submit schedules the trial on the pool. Fails when every worker is busy;
// the driver's capacity bounds normally prevent that, and its backoff
// retries absorb the rest.
func (d *LocalDispatcher) Submit(trialID string, params map[string]any, _ string, _ []string) error {
	ok := d.group.TryGo(func() error {
		payload, err := d.objective(params)
		c := Completion{TrialID: trialID, Success: err == nil, Payload: payload}
		if err != nil {
			c.Payload = map[string]any{"error": err.Error()}
		}
		d.mu.Lock()
		d.ready = append(d.ready, c)
		d.mu.Unlock()
		return nil
	})
	if !ok {
		return fmt.Errorf("local worker pool saturated")
	}
	return nil
}

// Poll returns all buffered completions without blocking.
func (d *LocalDispatcher) Poll() []Completion {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.ready
	d.ready = nil
	return out
}

// Wait blocks until all in-flight objectives finish. Used by tests and by
// the driver's drain phase when it owns the dispatcher.
func (d *LocalDispatcher) Wait() {
	d.group.Wait()
}

// CommandObjective adapts a worker shell command to an Objective. Params are
// written to paramFile as JSON in a per-trial temp directory, the command
// runs there, and resultFile is read back as the result payload. This
// mirrors the remote worker contract for purely local runs.
func CommandObjective(command, paramFile, resultFile string) Objective {
	return func(params map[string]any) (map[string]any, error) {
		dir, err := os.MkdirTemp("", "shadho_task_")
		if err != nil {
			return nil, fmt.Errorf("task workspace: %w", err)
		}
		defer os.RemoveAll(dir)

		buf, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		if err := os.WriteFile(dir+"/"+paramFile, buf, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", paramFile, err)
		}

		cmd := exec.Command("sh", "-c", command)
		cmd.Dir = dir
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("task command: %w (stderr: %s)", err, stderr.String())
		}

		out, err := os.ReadFile(dir + "/" + resultFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", resultFile, err)
		}
		var payload map[string]any
		if err := json.Unmarshal(out, &payload); err != nil {
			return nil, fmt.Errorf("decode %s: %w", resultFile, err)
		}
		return payload, nil
	}
}
