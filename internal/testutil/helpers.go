// Package testutil provides test helpers shared by envira's packages.
package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/driver"
)

// WriteTempFile writes content to a file in dir, creating parents.
func WriteTempFile(t *testing.T, dir, filename, content string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "failed to write temp file: %s", filename)
	return path
}

// FakeDriver serves one method from in-memory state. Safe for concurrent
// use by the engine's workers.
type FakeDriver struct {
	method step.Method

	mu        sync.Mutex
	satisfied map[step.ID]bool
	failures  map[step.ID]error
	executed  []step.ID
}

var _ driver.Driver = (*FakeDriver)(nil)

// NewFakeDriver creates a FakeDriver for m.
func NewFakeDriver(m step.Method) *FakeDriver {
	return &FakeDriver{
		method:    m,
		satisfied: make(map[step.ID]bool),
		failures:  make(map[step.ID]error),
	}
}

// FakeRegistry returns a registry with a FakeDriver per method.
func FakeRegistry() (*driver.Registry, map[step.Method]*FakeDriver) {
	fakes := make(map[step.Method]*FakeDriver, len(step.Methods))
	reg := driver.NewRegistry()
	for _, m := range step.Methods {
		fakes[m] = NewFakeDriver(m)
		reg.Register(fakes[m])
	}
	return reg, fakes
}

// Satisfy marks ids as already satisfied.
func (d *FakeDriver) Satisfy(ids ...string) *FakeDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.satisfied[step.MustNewID(id)] = true
	}
	return d
}

// Fail makes every execution of id fail with err.
func (d *FakeDriver) Fail(id string, err error) *FakeDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[step.MustNewID(id)] = err
	return d
}

// Executed returns the executed step IDs in call order.
func (d *FakeDriver) Executed() []step.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]step.ID(nil), d.executed...)
}

// Method implements driver.Driver.
func (d *FakeDriver) Method() step.Method { return d.method }

// IsSatisfied implements driver.Driver.
func (d *FakeDriver) IsSatisfied(_ context.Context, s step.Step, _ platform.Facts) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.satisfied[s.ID], nil
}

// Execute implements driver.Driver. A successful execution satisfies the
// step.
func (d *FakeDriver) Execute(ctx context.Context, s step.Step, _ platform.Facts) driver.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = append(d.executed, s.ID)
	if err := ctx.Err(); err != nil {
		return driver.Failed(err)
	}
	if err, ok := d.failures[s.ID]; ok {
		if err == nil {
			err = errors.New("failed")
		}
		return driver.Failed(err)
	}
	d.satisfied[s.ID] = true
	return driver.Succeeded("ran %s", s.ID)
}
