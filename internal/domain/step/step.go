package step

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
)

// Step is one catalog entry: what to install, where it applies, what it
// needs first and how to tell it is already done.
type Step struct {
	ID          ID
	Description string
	Method      Method
	AppliesTo   Applicability
	DependsOn   []ID
	Satisfied   Predicate
	Spec        Spec
	// Timeout overrides the run's per-step timeout when non-zero.
	Timeout time.Duration
}

// NotApplicable explains why s does not apply to f, or returns "" when it
// does. A distro-package step also needs package names for the host's
// family.
func (s Step) NotApplicable(f platform.Facts) string {
	if reason := s.AppliesTo.Reason(f); reason != "" {
		return reason
	}
	if s.Method == MethodDistroPackage && s.Spec.Packages != nil && len(s.Spec.Packages.Names[f.Family()]) == 0 {
		return fmt.Sprintf("no packages for %s", f.Family())
	}
	return ""
}

// Validate checks the step in isolation. Cross-step checks live in Graph.
func (s Step) Validate() error {
	if s.ID.IsZero() {
		return NewInvalidStepError("", ErrEmptyID)
	}
	if _, err := ParseMethod(string(s.Method)); err != nil {
		return NewInvalidStepError(s.ID.String(), err)
	}
	seen := make(map[ID]bool, len(s.DependsOn))
	for _, dep := range s.DependsOn {
		if dep == s.ID {
			return NewCyclicDependencyError([]string{s.ID.String(), s.ID.String()})
		}
		if seen[dep] {
			return NewInvalidStepError(s.ID.String(), fmt.Errorf("dependency %q listed twice", dep))
		}
		seen[dep] = true
	}
	if err := s.Spec.validate(s.Method); err != nil {
		return NewInvalidStepError(s.ID.String(), err)
	}
	return nil
}

// Label is the description when present, else the ID.
func (s Step) Label() string {
	if s.Description != "" {
		return s.Description
	}
	return s.ID.String()
}
