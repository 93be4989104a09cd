package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/envira/internal/domain/execution"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
)

// AssertFileContains asserts that a file contains the expected substring.
func AssertFileContains(t testing.TB, path, expected string, msgAndArgs ...any) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)
	assert.Contains(t, string(content), expected, msgAndArgs...)
}

// AssertOutcome asserts the recorded status and reason of a step.
func AssertOutcome(t testing.TB, log *execution.RunLog, id string, status step.Status, reason step.Reason) {
	t.Helper()

	o, ok := log.Get(step.MustNewID(id))
	require.True(t, ok, "no outcome recorded for %s", id)
	assert.Equal(t, status, o.Status, "status of %s", id)
	assert.Equal(t, reason, o.Reason, "reason of %s", id)
}

// AssertCheck asserts whether the labeled check passed.
func AssertCheck(t testing.TB, r verify.Report, label string, passed bool) {
	t.Helper()

	for _, res := range r.Results {
		if res.Check.Label == label {
			assert.Equal(t, passed, res.Passed, "check %q: %s", label, res.Detail)
			return
		}
	}
	assert.Fail(t, "check not found", label)
}
