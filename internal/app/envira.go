// Package app provides the operations behind the envira commands: it wires
// the catalog, the engine, the verifier and the real adapters together.
package app

import (
	"context"
	"errors"
	"io"

	archiveadapter "github.com/felixgeelhaar/envira/internal/adapters/archive"
	"github.com/felixgeelhaar/envira/internal/adapters/command"
	"github.com/felixgeelhaar/envira/internal/adapters/download"
	"github.com/felixgeelhaar/envira/internal/adapters/filesystem"
	"github.com/felixgeelhaar/envira/internal/adapters/logging"
	"github.com/felixgeelhaar/envira/internal/catalog"
	"github.com/felixgeelhaar/envira/internal/domain/config"
	"github.com/felixgeelhaar/envira/internal/domain/execution"
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
	"github.com/felixgeelhaar/envira/internal/driver"
	"github.com/felixgeelhaar/envira/internal/driver/archive"
	"github.com/felixgeelhaar/envira/internal/driver/distro"
	"github.com/felixgeelhaar/envira/internal/driver/installer"
	"github.com/felixgeelhaar/envira/internal/driver/lang"
	"github.com/felixgeelhaar/envira/internal/driver/patch"
	"github.com/felixgeelhaar/envira/internal/ports"
	"github.com/felixgeelhaar/envira/internal/telemetry"
	"github.com/felixgeelhaar/envira/internal/tui/ui"
)

// Exit codes.
const (
	ExitOK             = 0
	ExitInstallFailure = 1
	ExitVerifyFailure  = 2
	ExitConfigError    = 3
)

// Prober captures the host facts.
type Prober interface {
	Detect(ctx context.Context, mode platform.PrivilegeMode) platform.Facts
}

// Envira is the application orchestrator.
type Envira struct {
	printer   *ui.Printer
	logger    ports.Logger
	fs        ports.FileSystem
	runner    ports.CommandRunner
	prober    Prober
	drivers   *driver.Registry
	validator *config.Validator
	metrics   *telemetry.Metrics
}

// Option configures an Envira.
type Option func(*Envira)

// WithLogger sets the logger carried on every operation's context.
func WithLogger(l ports.Logger) Option {
	return func(e *Envira) { e.logger = l }
}

// WithFileSystem replaces the real filesystem.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(e *Envira) { e.fs = fs }
}

// WithRunner replaces the real command runner.
func WithRunner(r ports.CommandRunner) Option {
	return func(e *Envira) { e.runner = r }
}

// WithProber replaces the host probe.
func WithProber(p Prober) Option {
	return func(e *Envira) { e.prober = p }
}

// WithDrivers replaces the driver registry.
func WithDrivers(r *driver.Registry) Option {
	return func(e *Envira) { e.drivers = r }
}

// New creates an Envira writing console output to out. Anything not set
// by an option uses the real implementation.
func New(out io.Writer, opts ...Option) *Envira {
	e := &Envira{
		printer:   ui.NewPrinter(out),
		logger:    logging.Discard,
		validator: config.NewValidator(),
		metrics:   telemetry.NewMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fs == nil {
		e.fs = filesystem.NewRealFileSystem()
	}
	if e.runner == nil {
		e.runner = command.NewRealRunner(command.NonInteractive())
	}
	if e.prober == nil {
		e.prober = platform.NewProbe(e.fs, e.runner)
	}
	if e.drivers == nil {
		e.drivers = DefaultDrivers(e.runner, e.fs)
	}
	return e
}

// DefaultDrivers registers one driver per method.
func DefaultDrivers(runner ports.CommandRunner, fs ports.FileSystem) *driver.Registry {
	dl := download.NewHTTPDownloader(download.DefaultConfig())
	return driver.NewRegistry(
		distro.New(runner, fs),
		installer.New(runner, fs, dl),
		lang.New(runner, fs),
		archive.New(runner, fs, dl, archiveadapter.NewExtractor()),
		patch.New(fs),
	)
}

// Metrics returns the collectors the operations record into.
func (e *Envira) Metrics() *telemetry.Metrics {
	return e.metrics
}

// Result is what an install produced. Report is nil when verification was
// disabled.
type Result struct {
	Log    *execution.RunLog
	Report *verify.Report
}

type session struct {
	cfg     config.RunConfig
	catalog *catalog.Catalog
	facts   platform.Facts
}

// prepare validates cfg, loads the catalog and probes the host.
func (e *Envira) prepare(ctx context.Context, cfg config.RunConfig) (context.Context, *session, error) {
	if err := e.validator.Validate(cfg); err != nil {
		return ctx, nil, err
	}
	ctx = ports.ContextWithLogger(ctx, e.logger)

	cat, err := LoadCatalog(cfg.Catalog)
	if err != nil {
		return ctx, nil, err
	}
	facts := e.prober.Detect(ctx, cfg.PrivilegeMode())
	if cfg.CacheDir != "" {
		facts = facts.WithCacheDir(cfg.CacheDir)
	}
	e.printer.WithVerbose(cfg.Log.Verbose)
	e.logger.Debug(ctx, "catalog loaded", ports.F("source", cat.Source),
		ports.F("steps", len(cat.Steps)), ports.F("checks", len(cat.Checks)))
	return ctx, &session{cfg: cfg, catalog: cat, facts: facts}, nil
}

// LoadCatalog loads path, or the built-in catalog when path is empty.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Load()
	}
	return catalog.LoadFile(path)
}

func (e *Envira) engine(cfg config.RunConfig) *execution.Engine {
	return execution.NewEngine(e.drivers, cfg.Policy(),
		execution.WithObserver(e.printer),
		execution.WithRecorder(e.metrics))
}

// Install runs the catalog and, unless disabled, the verification pass.
// A cancelled run still returns its partial log and a verification report,
// together with the context's error.
func (e *Envira) Install(ctx context.Context, cfg config.RunConfig) (*Result, error) {
	ctx, s, err := e.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.printer.PrintHost("Installing", s.facts)

	log, runErr := e.engine(cfg).Run(ctx, s.catalog.Steps, s.facts, cfg.Selection())
	if log == nil {
		return nil, runErr
	}
	e.printer.PrintRun(log)

	res := &Result{Log: log}
	if cfg.Verify {
		report := e.verify(context.WithoutCancel(ctx), s)
		res.Report = &report
	}
	e.writeMetrics(ctx, cfg)
	return res, runErr
}

// Verify runs the verification pass alone.
func (e *Envira) Verify(ctx context.Context, cfg config.RunConfig) (*Result, error) {
	ctx, s, err := e.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.printer.PrintHost("Verifying", s.facts)
	report := e.verify(ctx, s)
	e.writeMetrics(ctx, cfg)
	return &Result{Report: &report}, nil
}

// Plan reports what an install would do without changing the host.
func (e *Envira) Plan(ctx context.Context, cfg config.RunConfig) (*execution.Plan, error) {
	ctx, s, err := e.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	plan, err := e.engine(cfg).Plan(ctx, s.catalog.Steps, s.facts, cfg.Selection())
	if err != nil {
		return nil, err
	}
	e.printer.PrintPlan(plan)
	return plan, nil
}

// Catalog prints the steps and checks of the catalog at path.
func (e *Envira) Catalog(path string) (*catalog.Catalog, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	e.printer.PrintCatalog(cat)
	return cat, nil
}

// PrintError renders err for the console.
func (e *Envira) PrintError(err error) {
	e.printer.PrintError(err)
}

func (e *Envira) verify(ctx context.Context, s *session) verify.Report {
	v := verify.NewVerifier(e.fs, e.runner,
		verify.WithTimeout(s.cfg.VerifyTimeout),
		verify.WithWorkers(s.cfg.Workers),
		verify.WithRecorder(e.metrics))
	report := v.Verify(ctx, s.catalog.Checks, s.facts)
	e.printer.PrintReport(report)
	return report
}

func (e *Envira) writeMetrics(ctx context.Context, cfg config.RunConfig) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := e.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		e.logger.Warn(ctx, "metrics file not written", ports.Err(err))
	}
}

// IsConfigError reports whether err is a fatal configuration problem:
// an invalid catalog, an invalid run configuration or a bad selection.
func IsConfigError(err error) bool {
	if step.IsConfigurationError(err) || config.GetUserError(err) != nil {
		return true
	}
	var list *config.ErrorList
	return errors.As(err, &list)
}

// ExitCode maps the result of an operation to the process exit code.
// Installation failures take precedence over verification failures; an
// interrupted run counts as an installation failure.
func ExitCode(res *Result, err error) int {
	switch {
	case err != nil && IsConfigError(err):
		return ExitConfigError
	case err != nil:
		return ExitInstallFailure
	case res == nil:
		return ExitOK
	case res.Log != nil && !res.Log.AllSucceeded():
		return ExitInstallFailure
	case res.Report != nil && !res.Report.Passed():
		return ExitVerifyFailure
	}
	return ExitOK
}
