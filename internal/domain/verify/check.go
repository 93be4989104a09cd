// Package verify re-probes the host after a run, independent of the
// engine's own bookkeeping.
package verify

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// Kind is what a check inspects.
type Kind string

// Check kinds.
const (
	KindCommandOnPath   Kind = "command-on-path"
	KindFileExists      Kind = "file-exists"
	KindDirectoryExists Kind = "directory-exists"
	KindFileContains    Kind = "file-contains-pattern"
	KindCommandRuns     Kind = "command-runs-successfully"
)

// Kinds lists every check kind.
var Kinds = []Kind{KindCommandOnPath, KindFileExists, KindDirectoryExists, KindFileContains, KindCommandRuns}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown check kind %q", s)
}

// Expectation refines what passing means.
type Expectation struct {
	// Absent inverts existence checks.
	Absent bool
	// Pattern is a regular expression the file content or command output
	// must match.
	Pattern string
	// MinVersion is the lowest version the command output may report.
	MinVersion string
}

// Check is one assertion about the host.
type Check struct {
	Label     string
	Kind      Kind
	Target    string
	Args      []string
	Expected  Expectation
	AppliesTo step.Applicability
	// Timeout overrides the verifier's per-check timeout when non-zero.
	Timeout time.Duration
}

// Validate checks the definition in isolation.
func (c Check) Validate() error {
	if c.Label == "" {
		return fmt.Errorf("check has no label")
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return fmt.Errorf("check %q: %w", c.Label, err)
	}
	if c.Target == "" {
		return fmt.Errorf("check %q: target required", c.Label)
	}
	if c.Kind == KindFileContains && c.Expected.Pattern == "" {
		return fmt.Errorf("check %q: %s requires a pattern", c.Label, c.Kind)
	}
	return nil
}

// Result is the evaluation of one check.
type Result struct {
	Check  Check
	Passed bool
	// Skipped checks do not apply to the host and carry no signal.
	Skipped bool
	Detail  string
}

// Report is the ordered set of results.
type Report struct {
	Results []Result
}

// Passed is the AND of all applicable results.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Skipped && !res.Passed {
			return false
		}
	}
	return true
}

// FailingLabels lists the labels of failed checks in check order.
func (r Report) FailingLabels() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Skipped && !res.Passed {
			out = append(out, res.Check.Label)
		}
	}
	return out
}

// Counts returns the number of passed, failed and skipped checks.
func (r Report) Counts() (passed, failed, skipped int) {
	for _, res := range r.Results {
		switch {
		case res.Skipped:
			skipped++
		case res.Passed:
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}
