package execution

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/envira/internal/domain/step"
)

func TestOutcome_Success(t *testing.T) {
	s := step.Step{ID: step.MustNewID("git"), Method: step.MethodDistroPackage, Description: "Git"}
	o := newOutcome(s, step.StatusSucceeded, step.ReasonNone, "installed git")

	if o.StepID != s.ID {
		t.Errorf("StepID = %v, want %v", o.StepID, s.ID)
	}
	if o.Label != "Git" {
		t.Errorf("Label = %q, want %q", o.Label, "Git")
	}
	if !o.Success() {
		t.Error("Success() should be true for succeeded status")
	}
	if o.Skipped() {
		t.Error("Skipped() should be false for succeeded status")
	}
	if o.Blocks() {
		t.Error("Blocks() should be false for succeeded status")
	}
}

func TestOutcome_Failure(t *testing.T) {
	s := step.Step{ID: step.MustNewID("rust"), Method: step.MethodBinaryInstaller}
	o := newOutcome(s, step.StatusFailed, step.ReasonTransient, "curl: (6) Could not resolve host")
	o.Err = errors.New("exit status 6")

	if o.Success() {
		t.Error("Success() should be false for failed status")
	}
	if !o.Blocks() {
		t.Error("Blocks() should be true for failed status")
	}
}

func TestOutcome_Blocks(t *testing.T) {
	s := step.Step{ID: step.MustNewID("nvm")}
	tests := []struct {
		status step.Status
		reason step.Reason
		want   bool
	}{
		{step.StatusSkippedNotApplicable, step.ReasonNotApplicable, false},
		{step.StatusSkippedNotApplicable, step.ReasonExcluded, false},
		{step.StatusSkippedNotApplicable, step.ReasonDependencyBlocked, true},
		{step.StatusSkippedNotApplicable, step.ReasonCancelled, true},
		{step.StatusSkippedSatisfied, step.ReasonAlreadySatisfied, false},
		{step.StatusFailed, step.ReasonToolNotFound, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+string(tt.reason), func(t *testing.T) {
			if got := newOutcome(s, tt.status, tt.reason, "").Blocks(); got != tt.want {
				t.Errorf("Blocks() = %v, want %v", got, tt.want)
			}
		})
	}
}
