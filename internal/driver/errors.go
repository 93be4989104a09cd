package driver

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// Error classes. Drivers wrap these; anything else is transient.
var (
	// ErrToolNotFound means a tool the step relies on is missing, which
	// points at a dependency-ordering problem in the catalog. Never retried.
	ErrToolNotFound = errors.New("tool not found")
	// ErrPermanent marks failures a retry cannot fix.
	ErrPermanent = errors.New("permanent failure")
)

// Class is the retry classification of an error.
type Class int

const (
	// ClassTransient failures are retried with backoff.
	ClassTransient Class = iota
	// ClassToolNotFound failures are escalated without retry.
	ClassToolNotFound
	// ClassPermanent failures are not retried.
	ClassPermanent
	// ClassCancelled means the run was cancelled.
	ClassCancelled
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassToolNotFound:
		return "tool-not-found"
	case ClassPermanent:
		return "permanent"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may succeed.
func (c Class) Retryable() bool {
	return c == ClassTransient
}

// Classify returns the class of err. A deadline is transient: slow mirrors
// recover.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassTransient
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.Is(err, ErrToolNotFound):
		return ClassToolNotFound
	case errors.Is(err, ErrPermanent), errors.Is(err, ports.ErrResourceNotFound):
		return ClassPermanent
	default:
		return ClassTransient
	}
}

// IsCommandNotFound reports whether an error indicates a missing executable.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return true
	}
	return strings.Contains(err.Error(), "executable file not found")
}
