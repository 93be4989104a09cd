package step

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for catalog validation.
const (
	ErrCodeStepDuplicate     = "STEP_DUPLICATE"
	ErrCodeDependencyMissing = "DEPENDENCY_MISSING"
	ErrCodeCyclicDependency  = "CYCLIC_DEPENDENCY"
	ErrCodeInvalidStep       = "INVALID_STEP"
)

// Sentinel errors wrapped by StepError.
var (
	ErrDuplicateStep    = errors.New("step with this ID already exists")
	ErrCyclicDependency = errors.New("cyclic dependency detected")
	ErrMissingDep       = errors.New("step depends on nonexistent step")
	ErrInvalidStep      = errors.New("invalid step")
)

// StepError is a catalog configuration error with an actionable suggestion.
// Any StepError aborts a run before the first installation.
type StepError struct {
	Code       string
	Message    string
	StepID     string
	Suggestion string
	Underlying error
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("step %q: %s", e.StepID, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain support.
func (e *StepError) Unwrap() error {
	return e.Underlying
}

// Format returns a fully formatted error with all details.
func (e *StepError) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.StepID != "" {
		fmt.Fprintf(&b, "\n  Step: %s", e.StepID)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}
	if e.Underlying != nil && !isSentinel(e.Underlying) {
		fmt.Fprintf(&b, "\n  Cause: %s", e.Underlying.Error())
	}
	return b.String()
}

func isSentinel(err error) bool {
	return err == ErrDuplicateStep || err == ErrCyclicDependency || err == ErrMissingDep || err == ErrInvalidStep
}

// WithStepID returns a copy with the step ID set.
func (e *StepError) WithStepID(stepID string) *StepError {
	c := *e
	c.StepID = stepID
	return &c
}

// WithSuggestion returns a copy with the suggestion set.
func (e *StepError) WithSuggestion(suggestion string) *StepError {
	c := *e
	c.Suggestion = suggestion
	return &c
}

// NewStepDuplicateError creates an error for a duplicate step ID.
func NewStepDuplicateError(stepID string) *StepError {
	return &StepError{
		Code:       ErrCodeStepDuplicate,
		Message:    "step with this ID already exists in the catalog",
		StepID:     stepID,
		Suggestion: "Each step must have a unique ID. Rename or remove the duplicate entry.",
		Underlying: ErrDuplicateStep,
	}
}

// NewDependencyMissingError creates an error for an unknown dependency.
func NewDependencyMissingError(stepID, dependsOn string) *StepError {
	return &StepError{
		Code:       ErrCodeDependencyMissing,
		Message:    fmt.Sprintf("step depends on '%s' which does not exist", dependsOn),
		StepID:     stepID,
		Suggestion: "Add the missing step to the catalog or drop it from depends_on.",
		Underlying: fmt.Errorf("%w: %s", ErrMissingDep, dependsOn),
	}
}

// NewCyclicDependencyError creates an error naming the cycle.
func NewCyclicDependencyError(cycle []string) *StepError {
	return &StepError{
		Code:       ErrCodeCyclicDependency,
		Message:    fmt.Sprintf("cyclic dependency detected: %s", strings.Join(cycle, " → ")),
		Suggestion: "Review depends_on entries to break the circular chain.",
		Underlying: ErrCyclicDependency,
	}
}

// NewInvalidStepError creates an error for a malformed step.
func NewInvalidStepError(stepID string, err error) *StepError {
	return &StepError{
		Code:       ErrCodeInvalidStep,
		Message:    err.Error(),
		StepID:     stepID,
		Suggestion: "Fix the step definition in the catalog.",
		Underlying: fmt.Errorf("%w: %w", ErrInvalidStep, err),
	}
}

// IsConfigurationError reports whether err is a fatal catalog error.
func IsConfigurationError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
