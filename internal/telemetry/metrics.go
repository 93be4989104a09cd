// Package telemetry exports run measurements as Prometheus metrics.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/envira/internal/domain/execution"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
)

const namespace = "envira"

// Check results used as the result label.
const (
	ResultPassed  = "passed"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Metrics records step and check measurements on its own registry. It
// implements execution.Recorder and verify.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// StepsTotal counts finished steps.
	// Labels: method, status
	StepsTotal *prometheus.CounterVec

	// StepDurationSeconds measures steps a driver executed.
	// Labels: method
	StepDurationSeconds *prometheus.HistogramVec

	// StepRetriesTotal counts retried attempts.
	// Labels: method
	StepRetriesTotal *prometheus.CounterVec

	// ChecksTotal counts evaluated verification checks.
	// Labels: kind, result
	ChecksTotal *prometheus.CounterVec
}

var (
	_ execution.Recorder = (*Metrics)(nil)
	_ verify.Recorder    = (*Metrics)(nil)
)

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Finished steps by method and status",
		}, []string{"method", "status"}),
		StepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of executed steps in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"method"}),
		StepRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_retries_total",
			Help:      "Retried step attempts by method",
		}, []string{"method"}),
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_checks_total",
			Help:      "Evaluated verification checks by kind and result",
		}, []string{"kind", "result"}),
	}
	m.registry.MustRegister(m.StepsTotal, m.StepDurationSeconds, m.StepRetriesTotal, m.ChecksTotal)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StepFinished counts the outcome. Durations are only observed for steps
// a driver ran.
func (m *Metrics) StepFinished(o execution.Outcome) {
	method := string(o.Method)
	m.StepsTotal.WithLabelValues(method, o.Status.String()).Inc()
	if o.Attempts > 0 {
		m.StepDurationSeconds.WithLabelValues(method).Observe(o.Duration.Seconds())
	}
}

// StepRetried counts one retry.
func (m *Metrics) StepRetried(method step.Method) {
	m.StepRetriesTotal.WithLabelValues(string(method)).Inc()
}

// CheckEvaluated counts one check result.
func (m *Metrics) CheckEvaluated(r verify.Result) {
	m.ChecksTotal.WithLabelValues(string(r.Check.Kind), resultLabel(r)).Inc()
}

func resultLabel(r verify.Result) string {
	switch {
	case r.Skipped:
		return ResultSkipped
	case r.Passed:
		return ResultPassed
	default:
		return ResultFailed
	}
}

// WriteTextfile writes the gathered metrics in the text exposition format,
// suitable for the node exporter textfile collector. The file is replaced
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
