package execution

import (
	"time"

	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// Default policy values.
const (
	DefaultWorkers     = 4
	DefaultStepTimeout = 15 * time.Minute
	DefaultAttempts    = 3
	DefaultBackoff     = 2 * time.Second
	DefaultGrace       = 10 * time.Second
)

// Policy bounds how the engine runs steps.
type Policy struct {
	// Workers is the number of steps executing at once.
	Workers int
	// StepTimeout bounds one attempt of a step without its own timeout.
	StepTimeout time.Duration
	// Attempts is the maximum number of executions of a step whose
	// failures are transient.
	Attempts int
	// Backoff is the wait before the second attempt; it doubles after.
	Backoff time.Duration
	// Grace is how long in-flight steps may finish after cancellation.
	Grace time.Duration
}

// DefaultPolicy returns the default policy.
func DefaultPolicy() Policy {
	return Policy{
		Workers:     DefaultWorkers,
		StepTimeout: DefaultStepTimeout,
		Attempts:    DefaultAttempts,
		Backoff:     DefaultBackoff,
		Grace:       DefaultGrace,
	}
}

// normalized fills zero values with defaults.
func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Workers <= 0 {
		p.Workers = d.Workers
	}
	if p.StepTimeout <= 0 {
		p.StepTimeout = d.StepTimeout
	}
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.Grace < 0 {
		p.Grace = 0
	}
	return p
}

func (p Policy) timeoutFor(s step.Step) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return p.StepTimeout
}

// backoff is the wait after the given failed attempt.
func (p Policy) backoff(attempt int) time.Duration {
	return p.Backoff << (attempt - 1)
}

// Selection narrows a run to part of the catalog.
type Selection struct {
	// Only runs these steps and their transitive dependencies. Empty
	// means every step.
	Only []step.ID
	// Skip marks these steps not applicable.
	Skip []step.ID
	// Force executes these steps even when already satisfied.
	Force []step.ID
}
