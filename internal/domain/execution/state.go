package execution

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// RunPhase is the state of a run.
type RunPhase string

// Run phases.
const (
	PhasePlanning             RunPhase = "planning"
	PhaseRunning              RunPhase = "running"
	PhaseAllSucceeded         RunPhase = "all-succeeded"
	PhaseCompletedWithFailure RunPhase = "completed-with-failures"
	PhaseAborted              RunPhase = "aborted"
)

// Events driving the run machine.
const (
	EventStart    = "START"
	EventSucceed  = "SUCCEED"
	EventFailures = "FAILURES"
	EventAbort    = "ABORT"
)

// runContext is the statekit context of a run.
type runContext struct {
	transitions int
}

// RunState tracks a run through planning, running and completion.
type RunState struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[runContext]
	phase  RunPhase
}

// NewRunState builds and starts the run machine in the planning phase.
func NewRunState() (*RunState, error) {
	machine, err := statekit.NewMachine[runContext]("envira-run").
		WithInitial(statekit.StateID(PhasePlanning)).
		WithContext(runContext{}).
		WithAction("count", func(c *runContext, _ statekit.Event) {
			c.transitions++
		}).
		State(statekit.StateID(PhasePlanning)).
		On(EventStart).Target(statekit.StateID(PhaseRunning)).
		On(EventAbort).Target(statekit.StateID(PhaseAborted)).Done().
		State(statekit.StateID(PhaseRunning)).
		OnEntry("count").
		On(EventSucceed).Target(statekit.StateID(PhaseAllSucceeded)).
		On(EventFailures).Target(statekit.StateID(PhaseCompletedWithFailure)).Done().
		State(statekit.StateID(PhaseAllSucceeded)).OnEntry("count").Done().
		State(statekit.StateID(PhaseCompletedWithFailure)).OnEntry("count").Done().
		State(statekit.StateID(PhaseAborted)).OnEntry("count").Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("build run state machine: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &RunState{interp: interp, phase: PhasePlanning}, nil
}

// Phase returns the current phase.
func (r *RunState) Phase() RunPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Start moves planning to running.
func (r *RunState) Start() {
	r.send(EventStart, false)
}

// Abort ends a run that failed validation.
func (r *RunState) Abort() {
	r.send(EventAbort, true)
}

// Complete ends a running run.
func (r *RunState) Complete(allSucceeded bool) {
	if allSucceeded {
		r.send(EventSucceed, true)
		return
	}
	r.send(EventFailures, true)
}

func (r *RunState) send(event statekit.EventType, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interp == nil {
		return
	}
	r.interp.Send(statekit.Event{Type: event})
	r.phase = RunPhase(r.interp.State().Value)
	if final {
		r.interp.Stop()
		r.interp = nil
	}
}

// Done reports whether the run reached a terminal phase.
func (r *RunState) Done() bool {
	switch r.Phase() {
	case PhaseAllSucceeded, PhaseCompletedWithFailure, PhaseAborted:
		return true
	default:
		return false
	}
}
