package execution

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// Summary counts outcomes per status.
type Summary struct {
	Total         int
	Succeeded     int
	Satisfied     int
	NotApplicable int
	Failed        int
}

// RunLog is the append-only record of one run. Outcomes are kept in
// topological order regardless of completion order.
type RunLog struct {
	mu        sync.RWMutex
	id        string
	host      string
	started   time.Time
	finished  time.Time
	cancelled bool
	phase     RunPhase
	slots     []*Outcome
}

func newRunLog(host string, size int, now time.Time) *RunLog {
	return &RunLog{
		id:      uuid.NewString(),
		host:    host,
		started: now,
		slots:   make([]*Outcome, size),
	}
}

// record stores the outcome for the step at topological position i. A
// position is written once.
func (l *RunLog) record(i int, o Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots[i] == nil {
		l.slots[i] = &o
	}
}

func (l *RunLog) finish(now time.Time, cancelled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = now
	l.cancelled = cancelled
}

func (l *RunLog) setPhase(p RunPhase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = p
}

// Phase is the phase the run ended in.
func (l *RunLog) Phase() RunPhase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

// ID identifies the run.
func (l *RunLog) ID() string { return l.id }

// Host describes the facts the run used.
func (l *RunLog) Host() string { return l.host }

// Started returns when the run began.
func (l *RunLog) Started() time.Time { return l.started }

// Duration is the wall time of the run.
func (l *RunLog) Duration() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.finished.IsZero() {
		return 0
	}
	return l.finished.Sub(l.started)
}

// Cancelled reports whether the run was interrupted.
func (l *RunLog) Cancelled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cancelled
}

// Outcomes returns the recorded outcomes in topological order.
func (l *RunLog) Outcomes() []Outcome {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Outcome, 0, len(l.slots))
	for _, o := range l.slots {
		if o != nil {
			out = append(out, *o)
		}
	}
	return out
}

// Get returns the outcome for id.
func (l *RunLog) Get(id step.ID) (Outcome, bool) {
	for _, o := range l.Outcomes() {
		if o.StepID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Failed returns the failed outcomes.
func (l *RunLog) Failed() []Outcome {
	var out []Outcome
	for _, o := range l.Outcomes() {
		if o.Status == step.StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// AllSucceeded reports whether no step failed.
func (l *RunLog) AllSucceeded() bool {
	return len(l.Failed()) == 0
}

// Summary counts the outcomes per status.
func (l *RunLog) Summary() Summary {
	var s Summary
	for _, o := range l.Outcomes() {
		s.Total++
		switch o.Status {
		case step.StatusSucceeded:
			s.Succeeded++
		case step.StatusSkippedSatisfied:
			s.Satisfied++
		case step.StatusSkippedNotApplicable:
			s.NotApplicable++
		case step.StatusFailed:
			s.Failed++
		}
	}
	return s
}
