// Package config holds the run configuration: defaults, the optional
// envira.yaml file and its validation.
package config

import (
	"time"

	"github.com/felixgeelhaar/envira/internal/domain/execution"
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// DefaultFileName is looked up in the working directory when no --config is given.
const DefaultFileName = "envira.yaml"

// DefaultVerifyTimeout bounds one verification check.
const DefaultVerifyTimeout = 30 * time.Second

// RunConfig is everything one invocation needs besides the catalog.
type RunConfig struct {
	Mode          string        `yaml:"mode" validate:"required,mode"`
	Workers       int           `yaml:"workers" validate:"min=1,max=64"`
	StepTimeout   time.Duration `yaml:"step_timeout" validate:"min=1s"`
	Attempts      int           `yaml:"attempts" validate:"min=1,max=10"`
	Backoff       time.Duration `yaml:"backoff" validate:"min=0s"`
	Grace         time.Duration `yaml:"grace" validate:"min=0s"`
	VerifyTimeout time.Duration `yaml:"verify_timeout" validate:"min=1s"`
	// Verify runs the verification pass after install.
	Verify bool `yaml:"verify"`
	// Catalog is an external catalog file; empty means the built-in one.
	Catalog     string   `yaml:"catalog"`
	Only        []string `yaml:"only" validate:"dive,stepid"`
	Skip        []string `yaml:"skip" validate:"dive,stepid"`
	Force       []string `yaml:"force" validate:"dive,stepid"`
	MetricsFile string   `yaml:"metrics_file"`
	CacheDir    string   `yaml:"cache_dir"`
	Log         LogConfig `yaml:"log"`
}

// LogConfig selects console log output.
type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when nothing is set. Mode is left
// empty: the caller must choose it.
func Default() RunConfig {
	p := execution.DefaultPolicy()
	return RunConfig{
		Workers:       p.Workers,
		StepTimeout:   p.StepTimeout,
		Attempts:      p.Attempts,
		Backoff:       p.Backoff,
		Grace:         p.Grace,
		VerifyTimeout: DefaultVerifyTimeout,
		Verify:        true,
		Log:           LogConfig{Format: "text"},
	}
}

// PrivilegeMode returns the parsed mode. Call Validate first.
func (c RunConfig) PrivilegeMode() platform.PrivilegeMode {
	m, err := platform.ParsePrivilegeMode(c.Mode)
	if err != nil {
		return platform.ModeUser
	}
	return m
}

// Policy converts the engine settings.
func (c RunConfig) Policy() execution.Policy {
	return execution.Policy{
		Workers:     c.Workers,
		StepTimeout: c.StepTimeout,
		Attempts:    c.Attempts,
		Backoff:     c.Backoff,
		Grace:       c.Grace,
	}
}

// Selection converts the step lists. Call Validate first.
func (c RunConfig) Selection() execution.Selection {
	return execution.Selection{
		Only:  toIDs(c.Only),
		Skip:  toIDs(c.Skip),
		Force: toIDs(c.Force),
	}
}

func toIDs(values []string) []step.ID {
	if len(values) == 0 {
		return nil
	}
	ids := make([]step.ID, 0, len(values))
	for _, v := range values {
		if id, err := step.NewID(v); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
