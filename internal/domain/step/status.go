package step

// Status is the terminal state of a step in a run.
type Status string

const (
	// StatusSkippedNotApplicable means the step did not run: it does not
	// apply to this host, a dependency failed, or the run was cancelled.
	StatusSkippedNotApplicable Status = "skipped-not-applicable"
	// StatusSkippedSatisfied means the idempotency check already held.
	StatusSkippedSatisfied Status = "skipped-already-satisfied"
	// StatusSucceeded means the driver executed and reported success.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the driver failed after all retries.
	StatusFailed Status = "failed"
)

// Statuses lists all statuses in summary order.
var Statuses = []Status{StatusSucceeded, StatusSkippedSatisfied, StatusSkippedNotApplicable, StatusFailed}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsSkipped reports whether the step was not executed.
func (s Status) IsSkipped() bool {
	return s == StatusSkippedNotApplicable || s == StatusSkippedSatisfied
}

// BlocksDependents reports whether steps depending on one with this status
// must not run. Steps that are satisfied or were skipped because they do not
// apply to the host leave nothing for dependents to miss.
func (s Status) BlocksDependents(r Reason) bool {
	switch s {
	case StatusFailed:
		return true
	case StatusSkippedNotApplicable:
		return r == ReasonDependencyBlocked || r == ReasonCancelled
	default:
		return false
	}
}

// Reason refines a status.
type Reason string

// Reasons.
const (
	ReasonNone              Reason = ""
	ReasonNotApplicable     Reason = "not-applicable"
	ReasonExcluded          Reason = "excluded"
	ReasonDependencyBlocked Reason = "dependency-blocked"
	ReasonCancelled         Reason = "cancelled"
	ReasonAlreadySatisfied  Reason = "already-satisfied"
	ReasonToolNotFound      Reason = "tool-not-found"
	ReasonTransient         Reason = "transient-failure"
	ReasonPermanent         Reason = "permanent-failure"
)
