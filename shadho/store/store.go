package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// FailReasonOrphaned marks trials found in the running state when a journal
// is reopened after a crash: their outcome is unknown and they are never
// double-submitted.
const FailReasonOrphaned = "orphaned"

// TrialStore is the durable, append/update-only collection of all trials in
// a run, indexed by trial id. Every mutation is appended to a JSONL journal
// (one record per line, last record per id wins), so reopening the journal
// reconstructs the store after a crash. The journal doubles as the results
// artifact: each line is the Trial schema plus the originating compute-class
// name.
//
// The driver loop is the sole writer; the mutex only guards against
// concurrent readers (exports, progress reporting).
type TrialStore struct {
	mu      sync.Mutex
	path    string
	journal *os.File
	trials  map[string]*Trial
	order   []string // insertion order, for deterministic scans
}

// Open creates a TrialStore backed by the journal at path, replaying any
// existing records. Trials left running by a previous process are
// reclassified as failed with reason "orphaned". An empty path yields an
// in-memory store with no durability, used by tests and one-shot runs.
func Open(path string) (*TrialStore, error) {
	s := &TrialStore{
		path:   path,
		trials: make(map[string]*Trial),
	}
	if path == "" {
		return s, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trial journal %s: %w", path, err)
	}
	s.journal = f

	if err := s.replay(); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.reclassifyOrphans(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *TrialStore) replay() error {
	scanner := bufio.NewScanner(s.journal)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var t Trial
		if err := json.Unmarshal(scanner.Bytes(), &t); err != nil {
			return fmt.Errorf("trial journal %s line %d: %w", s.path, line, err)
		}
		if _, ok := s.trials[t.TrialID]; !ok {
			s.order = append(s.order, t.TrialID)
		}
		s.trials[t.TrialID] = &t
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("trial journal %s: %w", s.path, err)
	}
	return nil
}

func (s *TrialStore) reclassifyOrphans() error {
	for _, id := range s.order {
		t := s.trials[id]
		if t.Status != StatusRunning {
			continue
		}
		logrus.Warnf("trial %s was running at last shutdown, marking failed (%s)", id, FailReasonOrphaned)
		t.Status = StatusFailed
		t.FailReason = FailReasonOrphaned
		if err := s.append(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *TrialStore) append(t *Trial) error {
	if s.journal == nil {
		return nil
	}
	rec, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trial %s: %w", t.TrialID, err)
	}
	rec = append(rec, '\n')
	if _, err := s.journal.Write(rec); err != nil {
		return fmt.Errorf("append trial %s: %w", t.TrialID, err)
	}
	return nil
}

// Put inserts or updates a trial record and appends it to the journal.
// Updating a trial that already reached a terminal state is rejected;
// terminal records are immutable.
func (s *TrialStore) Put(t *Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.trials[t.TrialID]; ok {
		if prev.Terminal() {
			return fmt.Errorf("trial %s is %s and immutable", t.TrialID, prev.Status)
		}
	} else {
		s.order = append(s.order, t.TrialID)
	}
	c := t.clone()
	s.trials[t.TrialID] = c
	return s.append(c)
}

// Get returns a copy of the trial with the given id.
func (s *TrialStore) Get(id string) (*Trial, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trials[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// Len returns the number of recorded trials.
func (s *TrialStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trials)
}

// All returns copies of every trial in insertion order.
func (s *TrialStore) All() []*Trial {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Trial, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.trials[id].clone())
	}
	return out
}

// Count returns the number of trials in the given status.
func (s *TrialStore) Count(status Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.trials {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Best returns the completed trial with the lowest loss, ties broken by
// earliest submit time. The boolean is false when no trial has completed.
func (s *TrialStore) Best() (*Trial, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Trial
	for _, id := range s.order {
		t := s.trials[id]
		if t.Status != StatusComplete {
			continue
		}
		if best == nil || t.Loss < best.Loss ||
			(t.Loss == best.Loss && t.SubmitTime.Before(best.SubmitTime)) {
			best = t
		}
	}
	if best == nil {
		return nil, false
	}
	return best.clone(), true
}

// Export writes the full trial collection to w, one JSON record per line, in
// insertion order. The schema matches the journal format.
func (s *TrialStore) Export(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(w)
	for _, id := range s.order {
		if err := enc.Encode(s.trials[id]); err != nil {
			return fmt.Errorf("export trial %s: %w", id, err)
		}
	}
	return nil
}

// Flush syncs the journal to stable storage.
func (s *TrialStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	return s.journal.Sync()
}

// Close flushes and closes the journal.
func (s *TrialStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	if err := s.journal.Sync(); err != nil {
		s.journal.Close()
		return err
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
