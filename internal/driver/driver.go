// Package driver defines the installer driver contract and the pieces
// shared by the per-method implementations in its subpackages.
package driver

import (
	"context"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// Result is the outcome of one Execute call.
type Result struct {
	Success bool
	Detail  string
	// Err carries the failure for classification. Nil on success.
	Err error
}

// Succeeded builds a successful Result.
func Succeeded(format string, args ...any) Result {
	return Result{Success: true, Detail: fmt.Sprintf(format, args...)}
}

// Failed builds a failed Result. Detail defaults to the error text.
func Failed(err error) Result {
	return Result{Detail: err.Error(), Err: err}
}

// Driver installs steps of a single method.
type Driver interface {
	Method() step.Method
	// IsSatisfied reports whether the step's end state already holds.
	// It must not modify the host.
	IsSatisfied(ctx context.Context, s step.Step, f platform.Facts) (bool, error)
	// Execute brings the host to the step's end state. Running it again
	// after success must be harmless.
	Execute(ctx context.Context, s step.Step, f platform.Facts) Result
}

// Registry maps methods to drivers.
type Registry struct {
	drivers map[step.Method]Driver
}

// NewRegistry creates a Registry holding drivers.
func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{drivers: make(map[step.Method]Driver, len(drivers))}
	for _, d := range drivers {
		r.Register(d)
	}
	return r
}

// Register adds or replaces the driver for its method.
func (r *Registry) Register(d Driver) {
	r.drivers[d.Method()] = d
}

// Get returns the driver for m.
func (r *Registry) Get(m step.Method) (Driver, bool) {
	d, ok := r.drivers[m]
	return d, ok
}

// Methods returns the registered methods in sorted order.
func (r *Registry) Methods() []step.Method {
	out := make([]step.Method, 0, len(r.drivers))
	for m := range r.drivers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Missing returns the methods used by steps that have no driver.
func (r *Registry) Missing(steps []step.Step) []step.Method {
	seen := make(map[step.Method]bool)
	var missing []step.Method
	for _, s := range steps {
		if _, ok := r.drivers[s.Method]; !ok && !seen[s.Method] {
			seen[s.Method] = true
			missing = append(missing, s.Method)
		}
	}
	return missing
}
