package ui_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/envira/internal/catalog"
	"github.com/felixgeelhaar/envira/internal/domain/config"
	"github.com/felixgeelhaar/envira/internal/domain/execution"
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
	"github.com/felixgeelhaar/envira/internal/testutil"
	"github.com/felixgeelhaar/envira/internal/tui/ui"
)

func testSteps() []step.Step {
	return []step.Step{
		testutil.NewStep("essentials", step.MethodDistroPackage).Build(),
		testutil.NewStep("zsh-theme", step.MethodManualArchive).DependsOn("essentials").Build(),
		testutil.NewStep("zshrc", step.MethodConfigPatch).DependsOn("zsh-theme").Build(),
		testutil.NewStep("yay", step.MethodBinaryInstaller).OnlyFamilies(platform.FamilyArch).Build(),
	}
}

func TestPrinter_Run(t *testing.T) {
	t.Parallel()

	reg, fakes := testutil.FakeRegistry()
	fakes[step.MethodDistroPackage].Satisfy("essentials")
	fakes[step.MethodManualArchive].Fail("zsh-theme", errors.New("download refused"))

	var buf bytes.Buffer
	p := ui.NewPrinter(&buf)
	policy := execution.DefaultPolicy()
	policy.Attempts = 1
	engine := execution.NewEngine(reg, policy, execution.WithObserver(p))

	log, err := engine.Run(context.Background(), testSteps(), testutil.FactsFor(platform.ModeUser), execution.Selection{})
	require.NoError(t, err)
	p.PrintRun(log)

	out := buf.String()
	assert.Contains(t, out, "= essentials already satisfied")
	assert.Contains(t, out, "→ zsh-theme")
	assert.Contains(t, out, "✗ zsh-theme")
	assert.Contains(t, out, "download refused")
	assert.Contains(t, out, "blocked by dependency failure: zsh-theme")
	assert.NotContains(t, out, "yay", "not-applicable steps are hidden")
	assert.Contains(t, out, "Install Results")
	assert.Contains(t, out, "0 succeeded, 1 already satisfied, 2 skipped, 1 failed")
	assert.NotContains(t, out, "\x1b[", "no colors when not a terminal")
}

func TestPrinter_VerboseShowsNotApplicable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := ui.NewPrinter(&buf).WithVerbose(true)
	p.StepFinished(execution.Outcome{StepID: step.MustNewID("yay"), Status: step.StatusSkippedNotApplicable,
		Reason: step.ReasonNotApplicable, Detail: "applies to arch"})

	assert.Contains(t, buf.String(), "- yay applies to arch")
}

func TestPrinter_Retry(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ui.NewPrinter(&buf).StepStarted(testutil.NewStep("rust", step.MethodBinaryInstaller).Build(), 2)
	assert.Contains(t, buf.String(), "↻ rust (attempt 2)")
}

func TestPrinter_Plan(t *testing.T) {
	t.Parallel()

	reg, fakes := testutil.FakeRegistry()
	fakes[step.MethodDistroPackage].Satisfy("essentials")
	engine := execution.NewEngine(reg, execution.DefaultPolicy())

	plan, err := engine.Plan(context.Background(), testSteps(), testutil.FactsFor(platform.ModeUser),
		execution.Selection{Force: step.IDs("zshrc")})
	require.NoError(t, err)

	var buf bytes.Buffer
	ui.NewPrinter(&buf).PrintPlan(plan)
	out := buf.String()
	assert.Contains(t, out, "Steps: 4 total, 2 to execute, 1 satisfied, 1 skipped")
	assert.Contains(t, out, "+ zsh-theme")
	assert.Contains(t, out, "+ zshrc forced")
	assert.Contains(t, out, "= essentials")
	assert.Contains(t, out, "envira install")
}

func TestPrinter_PlanUpToDate(t *testing.T) {
	t.Parallel()

	reg, fakes := testutil.FakeRegistry()
	fakes[step.MethodDistroPackage].Satisfy("essentials")
	engine := execution.NewEngine(reg, execution.DefaultPolicy())
	plan, err := engine.Plan(context.Background(), testSteps()[:1], testutil.FactsFor(platform.ModeUser), execution.Selection{})
	require.NoError(t, err)

	var buf bytes.Buffer
	ui.NewPrinter(&buf).PrintPlan(plan)
	assert.Contains(t, buf.String(), "No changes needed")
}

func TestPrinter_Report(t *testing.T) {
	t.Parallel()

	report := verify.Report{Results: []verify.Result{
		{Check: verify.Check{Label: "zsh on PATH"}, Passed: true},
		{Check: verify.Check{Label: "nvim version"}, Detail: "0.8.0 is older than 0.9.0"},
		{Check: verify.Check{Label: "docker on PATH"}, Skipped: true},
	}}

	var buf bytes.Buffer
	ui.NewPrinter(&buf).PrintReport(report)
	out := buf.String()
	assert.Contains(t, out, "✓ zsh on PATH")
	assert.Contains(t, out, "✗ nvim version 0.8.0 is older than 0.9.0")
	assert.NotContains(t, out, "docker")
	assert.Contains(t, out, "Checks: 1 passed, 1 failed, 1 skipped")
	assert.Contains(t, out, "Failing: nvim version")
}

func TestPrinter_Catalog(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	ui.NewPrinter(&buf).PrintCatalog(cat)
	out := buf.String()
	assert.Contains(t, out, "Distro Package")
	assert.Contains(t, out, "Config Patch")
	assert.Contains(t, out, "after nvm")
	assert.Contains(t, out, "[debian,elevated]")
	assert.Contains(t, out, "nvim version")
}

func TestPrinter_Error(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := ui.NewPrinter(&buf)
	p.PrintError(config.NewConfigNotFoundError("envira.yaml"))
	p.PrintError(errors.New("plain"))

	out := buf.String()
	assert.Contains(t, out, "[CONFIG_NOT_FOUND]")
	assert.Contains(t, out, "Location: envira.yaml")
	assert.Contains(t, out, "Error: plain")
}
