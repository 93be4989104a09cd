// Package execution walks a validated catalog in dependency order and
// records what happened to every step.
package execution

import (
	"time"

	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// Outcome captures what happened to a single step.
type Outcome struct {
	StepID   step.ID
	Label    string
	Method   step.Method
	Status   step.Status
	Reason   step.Reason
	Detail   string
	Attempts int
	Duration time.Duration
	Err      error
}

func newOutcome(s step.Step, status step.Status, reason step.Reason, detail string) Outcome {
	return Outcome{
		StepID: s.ID,
		Label:  s.Label(),
		Method: s.Method,
		Status: status,
		Reason: reason,
		Detail: detail,
	}
}

// Success returns true unless the step failed.
func (o Outcome) Success() bool {
	return o.Status != step.StatusFailed
}

// Skipped returns true if no driver executed the step.
func (o Outcome) Skipped() bool {
	return o.Status.IsSkipped()
}

// Blocks reports whether dependents of this step must not run.
func (o Outcome) Blocks() bool {
	return o.Status.BlocksDependents(o.Reason)
}
