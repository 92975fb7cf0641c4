// The driver owns the search loop: it offers slots to compute classes,
// samples trials, hands them to the dispatch layer, and folds completions
// back into the trial store. All store and slot mutation happens on the loop
// goroutine; the dispatch layer is polled, never calls back.

package shadho

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shadho-project/shadho/shadho/store"
)

// State is the driver's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateTimedOut  State = "timed_out"
	StateExhausted State = "exhausted"
	StateAborted   State = "aborted"
	StateStopped   State = "stopped"
)

// Trial failure reasons recorded by the driver.
const (
	FailReasonDispatch = "dispatch"
	FailReasonWorker   = "worker"
	FailReasonResult   = "result"
	FailReasonDeadline = "deadline"
)

// maxRefillBurst caps how many trials an unbounded compute class submits per
// loop iteration; the next iteration tops it up.
const maxRefillBurst = 64

// flight tracks one outstanding trial.
type flight struct {
	class     *ComputeClass
	submitted time.Time
}

// Driver orchestrates a search run over a set of compute classes.
type Driver struct {
	cfg        DriverConfig
	classes    []*ComputeClass
	alloc      Allocator
	dispatcher Dispatcher
	trials     *store.TrialStore
	rng        *PartitionedRNG

	state         State
	terminal      State
	inFlight      map[string]*flight
	seen          map[string]map[string]struct{} // class id -> distinct assignment signatures
	exhausted     map[string]bool                // class id -> finite space fully enumerated
	dispatchFails int                            // consecutive trials lost to dispatch failures
}

// NewDriver validates the configuration, opens the trial journal, and wires
// the allocator. Classes must each carry a search tree; use
// DefaultComputeClasses when the caller has a single tree and no fleet
// layout.
func NewDriver(cfg DriverConfig, classes []*ComputeClass, dispatcher Dispatcher) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: nil dispatcher", ErrConfiguration)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no compute classes", ErrConfiguration)
	}
	names := make(map[string]bool, len(classes))
	for _, cc := range classes {
		if cc.Tree == nil {
			return nil, fmt.Errorf("%w: compute class %s has no search tree", ErrConfiguration, cc.Name)
		}
		if names[cc.Name] {
			return nil, fmt.Errorf("%w: compute class name %q used twice", ErrConfiguration, cc.Name)
		}
		names[cc.Name] = true
	}

	trials, err := store.Open(cfg.JournalFile)
	if err != nil {
		return nil, err
	}

	return &Driver{
		cfg:        cfg,
		classes:    classes,
		alloc:      NewAllocator(cfg.Allocator),
		dispatcher: dispatcher,
		trials:     trials,
		rng:        NewPartitionedRNG(NewSearchKey(cfg.Seed)),
		state:      StateIdle,
		inFlight:   make(map[string]*flight),
		seen:       make(map[string]map[string]struct{}),
		exhausted:  make(map[string]bool),
	}, nil
}

// DefaultComputeClasses wraps a single tree in one class named "all" with
// the given capacity, for runs that don't partition their fleet.
func DefaultComputeClasses(tree *SearchTree, maxTasks int) ([]*ComputeClass, error) {
	cc, err := NewComputeClass("all", "", "", maxTasks, tree)
	if err != nil {
		return nil, err
	}
	return []*ComputeClass{cc}, nil
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State { return d.state }

// Store exposes the trial store for inspection after a run.
func (d *Driver) Store() *store.TrialStore { return d.trials }

// Run blocks until a stopping condition fires, then drains in-flight trials
// for the configured grace period, exports results, and reports the best
// observed trial. Only configuration problems (already surfaced by
// NewDriver) and unrecoverable dispatch failures return an error; individual
// trial failures are absorbed into their records.
func (d *Driver) Run() (*Summary, error) {
	if d.state != StateIdle {
		return nil, fmt.Errorf("driver already ran (state %s)", d.state)
	}
	d.state = StateRunning
	start := time.Now()
	logrus.Infof("search started: %d compute classes, timeout %s, seed %d",
		len(d.classes), d.cfg.Timeout.Std(), d.cfg.Seed)

	var abortErr error
	for d.state == StateRunning {
		d.drainCompletions()
		d.expireDeadlines(time.Now())

		if err := d.refill(); err != nil {
			abortErr = err
			d.state = StateAborted
			break
		}
		if time.Since(start) >= d.cfg.Timeout.Std() {
			d.state = StateTimedOut
			break
		}
		if d.allExhausted() && len(d.inFlight) == 0 {
			d.state = StateExhausted
			break
		}
		time.Sleep(d.cfg.PollInterval.Std())
	}
	d.terminal = d.state
	logrus.Infof("stopping condition: %s", d.terminal)

	d.drain()

	if err := d.trials.Flush(); err != nil {
		logrus.Warnf("flush trial journal: %v", err)
	}
	if d.cfg.ResultsFile != "" {
		if err := d.exportResults(); err != nil {
			logrus.Warnf("export results: %v", err)
		}
	}

	summary := d.summarize(time.Since(start))
	summary.Log()
	d.state = StateStopped
	if abortErr != nil {
		return summary, abortErr
	}
	return summary, nil
}

// drainCompletions applies everything the dispatch layer has ready, in
// completion order.
func (d *Driver) drainCompletions() {
	for _, c := range d.dispatcher.Poll() {
		d.settle(c)
	}
}

// settle folds one completion into the trial store and releases its slot.
// Completions for unknown or already-settled trials (a worker reporting
// after the soft deadline fired) are dropped with a warning.
func (d *Driver) settle(c Completion) {
	fl, ok := d.inFlight[c.TrialID]
	if !ok {
		logrus.Warnf("dropping completion for unknown or settled trial %s", c.TrialID)
		return
	}
	delete(d.inFlight, c.TrialID)
	fl.class.Release()

	trial, ok := d.trials.Get(c.TrialID)
	if !ok {
		logrus.Warnf("completion for trial %s missing from store", c.TrialID)
		return
	}

	if c.Success {
		loss, err := lossFrom(c.Payload)
		if err != nil {
			logrus.Warnf("%v", &WorkerResultError{TrialID: c.TrialID, Reason: err.Error()})
			trial.Status = store.StatusFailed
			trial.FailReason = FailReasonResult
			trial.Result = c.Payload
		} else {
			trial.Status = store.StatusComplete
			trial.Loss = loss
			trial.Result = c.Payload
			logrus.Debugf("trial %s complete, loss %g", c.TrialID, loss)
		}
	} else {
		trial.Status = store.StatusFailed
		trial.FailReason = FailReasonWorker
		trial.Result = c.Payload
		logrus.Debugf("trial %s failed on worker", c.TrialID)
	}

	if err := d.trials.Put(trial); err != nil {
		logrus.Warnf("record trial %s: %v", c.TrialID, err)
	}
}

// lossFrom extracts the mandatory numeric loss from a success payload.
func lossFrom(payload map[string]any) (float64, error) {
	v, ok := payload["loss"]
	if !ok {
		return 0, fmt.Errorf("payload has no loss field")
	}
	switch loss := v.(type) {
	case float64:
		return loss, nil
	case float32:
		return float64(loss), nil
	case int:
		return float64(loss), nil
	case int64:
		return float64(loss), nil
	case json.Number:
		return loss.Float64()
	default:
		return 0, fmt.Errorf("loss field is %T, not numeric", v)
	}
}

// expireDeadlines fails trials that outlived the per-trial soft deadline so
// a silently vanished worker can never wedge the run.
func (d *Driver) expireDeadlines(now time.Time) {
	if d.cfg.TrialTimeout <= 0 {
		return
	}
	for id, fl := range d.inFlight {
		if now.Sub(fl.submitted) < d.cfg.TrialTimeout.Std() {
			continue
		}
		logrus.Warnf("trial %s exceeded deadline %s, abandoning", id, d.cfg.TrialTimeout.Std())
		if trial, ok := d.trials.Get(id); ok {
			trial.Status = store.StatusFailed
			trial.FailReason = FailReasonDeadline
			if err := d.trials.Put(trial); err != nil {
				logrus.Warnf("record trial %s: %v", id, err)
			}
		}
		fl.class.Release()
		delete(d.inFlight, id)
	}
}

// refill offers new trials to every class with spare capacity, in allocator
// order. Returns an error only when consecutive dispatch failures cross the
// abort threshold.
func (d *Driver) refill() error {
	for _, cc := range d.alloc.Order(d.classes) {
		if d.exhausted[cc.ID] {
			continue
		}
		burst := 0
		for cc.TryAcquire() {
			if cc.MaxTasks == 0 {
				if burst++; burst > maxRefillBurst {
					cc.Release()
					break
				}
			}
			if d.classExhausted(cc) {
				cc.Release()
				d.exhausted[cc.ID] = true
				logrus.Infof("compute class %s exhausted its search space", cc.Name)
				break
			}
			if err := d.launch(cc); err != nil {
				return err
			}
		}
	}
	return nil
}

// launch samples one trial from the class's tree, records it, and submits
// it. The slot is already held and is released again if dispatch fails for
// good.
func (d *Driver) launch(cc *ComputeClass) error {
	rng := d.rng.ForSubsystem(SubsystemClass(cc.Name))
	params, included := cc.Tree.Sample(rng)
	if !included {
		params = nil // optional root excluded: an empty assignment
	}
	d.recordSignature(cc, params)

	trial := &store.Trial{
		TrialID:      uuid.NewString(),
		ComputeClass: cc.Name,
		Params:       params,
		SubmitTime:   time.Now(),
		Status:       store.StatusPending,
	}
	if err := d.trials.Put(trial); err != nil {
		cc.Release()
		return fmt.Errorf("record trial %s: %w", trial.TrialID, err)
	}

	if err := d.submit(trial); err != nil {
		logrus.Warnf("%v", err)
		trial.Status = store.StatusFailed
		trial.FailReason = FailReasonDispatch
		if perr := d.trials.Put(trial); perr != nil {
			logrus.Warnf("record trial %s: %v", trial.TrialID, perr)
		}
		cc.Release()
		d.dispatchFails++
		if d.dispatchFails >= d.cfg.Backoff.AbortThreshold {
			return fmt.Errorf("dispatch layer failing persistently (%d consecutive trials lost): %w",
				d.dispatchFails, err)
		}
		return nil
	}

	d.dispatchFails = 0
	trial.Status = store.StatusRunning
	if err := d.trials.Put(trial); err != nil {
		logrus.Warnf("record trial %s: %v", trial.TrialID, err)
	}
	d.inFlight[trial.TrialID] = &flight{class: cc, submitted: time.Now()}
	logrus.Debugf("trial %s submitted to class %s", trial.TrialID, cc.Name)
	return nil
}

// submit hands one trial to the dispatch layer, retrying with exponential
// backoff up to the configured retry bound.
func (d *Driver) submit(t *store.Trial) error {
	op := func() error {
		if err := d.dispatcher.Submit(t.TrialID, t.Params, d.cfg.Command, d.cfg.InputFiles); err != nil {
			return &DispatchError{TrialID: t.TrialID, Err: err}
		}
		return nil
	}
	b := backoff.NewExponentialBackOff()
	if d.cfg.Backoff.InitialInterval > 0 {
		b.InitialInterval = d.cfg.Backoff.InitialInterval.Std()
	}
	return backoff.Retry(op, backoff.WithMaxRetries(b, d.cfg.Backoff.MaxRetries))
}

// recordSignature tracks distinct assignments per class for exhaustion
// detection on finite spaces. JSON marshaling sorts map keys, so equal
// assignments always collide.
func (d *Driver) recordSignature(cc *ComputeClass, params map[string]any) {
	if _, finite := cc.Tree.Cardinality(); !finite {
		return
	}
	sig, err := json.Marshal(params)
	if err != nil {
		return
	}
	set, ok := d.seen[cc.ID]
	if !ok {
		set = make(map[string]struct{})
		d.seen[cc.ID] = set
	}
	set[string(sig)] = struct{}{}
}

// classExhausted reports whether a finite class has produced every distinct
// assignment its tree can generate. Infinite trees are never exhausted.
func (d *Driver) classExhausted(cc *ComputeClass) bool {
	card, finite := cc.Tree.Cardinality()
	if !finite {
		return false
	}
	return uint64(len(d.seen[cc.ID])) >= card
}

func (d *Driver) allExhausted() bool {
	for _, cc := range d.classes {
		if !d.exhausted[cc.ID] {
			return false
		}
	}
	return true
}

// drain waits out the grace period for in-flight trials. Whatever completes
// in time is recorded; the rest stay running in the journal and will be
// reclassified as orphaned if the journal is reopened.
func (d *Driver) drain() {
	deadline := time.Now().Add(d.cfg.DrainGrace.Std())
	for len(d.inFlight) > 0 && time.Now().Before(deadline) {
		d.drainCompletions()
		d.expireDeadlines(time.Now())
		if len(d.inFlight) == 0 {
			break
		}
		time.Sleep(d.cfg.PollInterval.Std())
	}
	if n := len(d.inFlight); n > 0 {
		logrus.Warnf("%d trials still in flight after %s drain; their outcomes are not counted",
			n, d.cfg.DrainGrace.Std())
	}
}

func (d *Driver) exportResults() error {
	f, err := os.Create(d.cfg.ResultsFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := d.trials.Export(f); err != nil {
		return err
	}
	logrus.Infof("wrote %d trial records to %s", d.trials.Len(), d.cfg.ResultsFile)
	return nil
}

func (d *Driver) summarize(elapsed time.Duration) *Summary {
	best, _ := d.trials.Best()
	return &Summary{
		State:     d.terminal,
		Elapsed:   elapsed,
		Trials:    d.trials.Len(),
		Completed: d.trials.Count(store.StatusComplete),
		Failed:    d.trials.Count(store.StatusFailed),
		Best:      best,
	}
}

// Summary is the final report of a run.
type Summary struct {
	State     State
	Elapsed   time.Duration
	Trials    int
	Completed int
	Failed    int
	Best      *store.Trial // nil when nothing completed
}

// Log prints the summary through the standard logger.
func (s *Summary) Log() {
	logrus.Infof("search ended (%s) after %s: %d trials, %d complete, %d failed",
		s.State, s.Elapsed.Round(time.Millisecond), s.Trials, s.Completed, s.Failed)
	if s.Best != nil {
		logrus.Infof("best loss %.6g from class %s with params %v",
			s.Best.Loss, s.Best.ComputeClass, s.Best.Params)
	} else {
		logrus.Info("no trial completed successfully")
	}
}
