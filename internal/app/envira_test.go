package app_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/envira/internal/app"
	"github.com/felixgeelhaar/envira/internal/domain/config"
	"github.com/felixgeelhaar/envira/internal/domain/execution"
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
	"github.com/felixgeelhaar/envira/internal/driver"
	"github.com/felixgeelhaar/envira/internal/testutil"
	"github.com/felixgeelhaar/envira/internal/testutil/mocks"
)

const testCatalog = `
steps:
  - id: base
    method: distro-package
    packages: {debian: [zsh], fedora: [zsh], arch: [zsh]}
  - id: shell-framework
    method: binary-installer
    depends_on: [base]
    installer: {kind: script, url: "https://example.com/install.sh", interpreter: sh}
  - id: shell-theme
    method: config-patch
    depends_on: [shell-framework]
    patch: {path: ~/.zshrc, mode: line, line: "ZSH_THEME=x", create: true}
  - id: tmux-config
    method: config-patch
    depends_on: [base]
    patch: {path: ~/.tmux.conf, mode: line, line: "set -g mouse on", create: true}
  - id: yay
    method: binary-installer
    applies_to: {families: [arch]}
    installer: {kind: git, url: "https://aur.archlinux.org/yay.git", dest: ~/yay}
checks:
  - {label: zsh on PATH, kind: command-on-path, target: zsh}
  - {label: theme configured, kind: file-contains-pattern, target: ~/.zshrc, expect: {pattern: ZSH_THEME}}
  - {label: yay on PATH, kind: command-on-path, target: yay, applies_to: {families: [arch]}}
`

type fakeProber struct{}

func (p fakeProber) Detect(_ context.Context, mode platform.PrivilegeMode) platform.Facts {
	return testutil.FactsFor(mode)
}

type fixture struct {
	envira *app.Envira
	out    *bytes.Buffer
	fs     *mocks.FileSystem
	fakes  map[step.Method]*testutil.FakeDriver
	cfg    config.RunConfig
	dir    string
}

func newFixture(t *testing.T, catalogYAML string) *fixture {
	t.Helper()

	dir := t.TempDir()
	path := testutil.WriteTempFile(t, dir, "catalog.yaml", catalogYAML)

	reg, fakes := testutil.FakeRegistry()
	fs := mocks.NewFileSystem()
	fs.AddFile("/usr/bin/zsh", "")
	fs.AddFile("/home/dev/.zshrc", "ZSH_THEME=x\n")

	var out bytes.Buffer
	cfg := config.Default()
	cfg.Mode = "user"
	cfg.Catalog = path
	cfg.Backoff = 0

	return &fixture{
		envira: app.New(&out,
			app.WithFileSystem(fs),
			app.WithRunner(mocks.NewCommandRunner()),
			app.WithProber(fakeProber{}),
			app.WithDrivers(reg)),
		out:   &out,
		fs:    fs,
		fakes: fakes,
		cfg:   cfg,
		dir:   dir,
	}
}

func TestInstall_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testCatalog)
	f.cfg.MetricsFile = filepath.Join(f.dir, "envira.prom")

	res, err := f.envira.Install(context.Background(), f.cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Equal(t, app.ExitOK, app.ExitCode(res, err))

	testutil.AssertOutcome(t, res.Log, "shell-theme", step.StatusSucceeded, step.ReasonNone)
	testutil.AssertOutcome(t, res.Log, "yay", step.StatusSkippedNotApplicable, step.ReasonNotApplicable)
	testutil.AssertCheck(t, *res.Report, "zsh on PATH", true)
	assert.Equal(t, step.IDs("shell-framework"), f.fakes[step.MethodBinaryInstaller].Executed(), "yay never dispatched")

	out := f.out.String()
	assert.Contains(t, out, "Installing")
	assert.Contains(t, out, "Install Results")
	assert.Contains(t, out, "Verification")
	testutil.AssertFileContains(t, f.cfg.MetricsFile, `envira_verification_checks_total{kind="command-on-path",result="passed"} 1`)
}

func TestInstall_FailureBlocksDependents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testCatalog)
	f.fakes[step.MethodBinaryInstaller].Fail("shell-framework", driver.ErrPermanent)
	require.NoError(t, f.fs.Remove("/home/dev/.zshrc"))

	res, err := f.envira.Install(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, app.ExitInstallFailure, app.ExitCode(res, err))

	testutil.AssertOutcome(t, res.Log, "shell-framework", step.StatusFailed, step.ReasonPermanent)
	testutil.AssertOutcome(t, res.Log, "shell-theme", step.StatusSkippedNotApplicable, step.ReasonDependencyBlocked)
	testutil.AssertOutcome(t, res.Log, "tmux-config", step.StatusSucceeded, step.ReasonNone)
	assert.Equal(t, []string{"theme configured"}, res.Report.FailingLabels())
	assert.Equal(t, 1.0, countOf(t, f.envira, "failed"))
}

func countOf(t *testing.T, e *app.Envira, status string) float64 {
	t.Helper()
	families, err := e.Metrics().Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "envira_steps_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestInstall_NoVerify(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testCatalog)
	f.cfg.Verify = false

	res, err := f.envira.Install(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Report)
	assert.NotContains(t, f.out.String(), "Verification")
}

func TestInstall_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testCatalog)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.envira.Install(ctx, f.cfg)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Log.Cancelled())
	require.NotNil(t, res.Report, "verification still runs")
	assert.Equal(t, app.ExitInstallFailure, app.ExitCode(res, err))
}

func TestInstall_ConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		catalog string
		mutate  func(*config.RunConfig, string)
	}{
		{"invalid config", testCatalog, func(c *config.RunConfig, _ string) { c.Workers = 0 }},
		{"missing catalog", testCatalog, func(c *config.RunConfig, dir string) { c.Catalog = filepath.Join(dir, "nope.yaml") }},
		{"unknown only", testCatalog, func(c *config.RunConfig, _ string) { c.Only = []string{"nvim"} }},
		{"cycle", `
steps:
  - {id: a, method: config-patch, depends_on: [b], patch: {path: ~/.a, mode: line, line: a}}
  - {id: b, method: config-patch, depends_on: [a], patch: {path: ~/.b, mode: line, line: b}}
`, func(*config.RunConfig, string) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.catalog)
			tt.mutate(&f.cfg, f.dir)

			res, err := f.envira.Install(context.Background(), f.cfg)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, app.IsConfigError(err), err)
			assert.Equal(t, app.ExitConfigError, app.ExitCode(res, err))
			for _, fake := range f.fakes {
				assert.Empty(t, fake.Executed())
			}
		})
	}
}

func TestVerify_Standalone(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testCatalog)
	require.NoError(t, f.fs.Remove("/usr/bin/zsh"))

	res, err := f.envira.Verify(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Log)
	assert.Equal(t, []string{"zsh on PATH"}, res.Report.FailingLabels())
	assert.Equal(t, app.ExitVerifyFailure, app.ExitCode(res, err))
	for _, fake := range f.fakes {
		assert.Empty(t, fake.Executed())
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testCatalog)
	f.fakes[step.MethodDistroPackage].Satisfy("base")
	f.cfg.Mode = "system"

	plan, err := f.envira.Plan(context.Background(), f.cfg)
	require.NoError(t, err)
	assert.True(t, plan.HasChanges())
	assert.Equal(t, execution.PlanSummary{Total: 5, Execute: 3, Satisfied: 1, NotApplicable: 1}, plan.Summary())
	assert.Contains(t, f.out.String(), "Install Plan")
	for _, fake := range f.fakes {
		assert.Empty(t, fake.Executed())
	}
}

func TestCatalog_Builtin(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cat, err := app.New(&out, app.WithFileSystem(mocks.NewFileSystem()), app.WithRunner(mocks.NewCommandRunner())).Catalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Steps)
	assert.Contains(t, out.String(), "built-in catalog")
}

func TestDefaultDrivers_CoverEveryMethod(t *testing.T) {
	t.Parallel()

	reg := app.DefaultDrivers(mocks.NewCommandRunner(), mocks.NewFileSystem())
	assert.ElementsMatch(t, step.Methods, reg.Methods())
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	passed := verify.Report{Results: []verify.Result{{Passed: true}}}
	failed := verify.Report{Results: []verify.Result{{Check: verify.Check{Label: "x"}}}}

	assert.Equal(t, app.ExitOK, app.ExitCode(nil, nil))
	assert.Equal(t, app.ExitOK, app.ExitCode(&app.Result{Report: &passed}, nil))
	assert.Equal(t, app.ExitVerifyFailure, app.ExitCode(&app.Result{Report: &failed}, nil))
	assert.Equal(t, app.ExitConfigError, app.ExitCode(nil, step.NewCyclicDependencyError([]string{"a", "b", "a"})))
	assert.Equal(t, app.ExitConfigError, app.ExitCode(nil, config.NewCatalogNotFoundError("x")))
	assert.Equal(t, app.ExitInstallFailure, app.ExitCode(nil, errors.New("boom")))
}
