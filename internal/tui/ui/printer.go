package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/envira/internal/catalog"
	"github.com/felixgeelhaar/envira/internal/domain/execution"
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
)

// Status icons.
const (
	IconSuccess   = "✓"
	IconSatisfied = "="
	IconSkipped   = "-"
	IconFailed    = "✗"
	IconRunning   = "→"
	IconRetry     = "↻"
	IconExecute   = "+"
)

// Printer writes human readable output. It implements execution.Observer;
// live lines may come from several goroutines.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	styles  Styles
	title   cases.Caser
	verbose bool
}

var _ execution.Observer = (*Printer)(nil)

// NewPrinter creates a Printer for out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:    out,
		styles: DefaultStyles(lipgloss.NewRenderer(out)),
		title:  cases.Title(language.English),
	}
}

// WithVerbose also reports steps that do not apply to the host.
func (p *Printer) WithVerbose(v bool) *Printer {
	p.verbose = v
	return p
}

// PrintHost announces an operation on the detected host.
func (p *Printer) PrintHost(action string, f platform.Facts) {
	p.printf("%s %s\n\n", p.styles.Title.Render(action), p.styles.Muted.Render(f.String()))
}

// StepStarted reports an attempt.
func (p *Printer) StepStarted(s step.Step, attempt int) {
	if attempt > 1 {
		p.printf("  %s %s %s\n", p.styles.Warning.Render(IconRetry), p.styles.StepID.Render(s.ID.String()),
			p.styles.Muted.Render(fmt.Sprintf("(attempt %d)", attempt)))
		return
	}
	p.printf("  %s %s %s\n", p.styles.Info.Render(IconRunning), p.styles.StepID.Render(s.ID.String()),
		p.styles.Muted.Render(s.Label()))
}

// StepFinished reports the outcome of a step. Steps that were not selected
// or do not apply are only shown in verbose mode.
func (p *Printer) StepFinished(o execution.Outcome) {
	if !p.verbose && o.Status == step.StatusSkippedNotApplicable &&
		(o.Reason == step.ReasonNotApplicable || o.Reason == step.ReasonExcluded) {
		return
	}
	p.printf("  %s\n", p.outcomeLine(o))
}

func (p *Printer) outcomeLine(o execution.Outcome) string {
	id := p.styles.StepID.Render(o.StepID.String())
	switch o.Status {
	case step.StatusSucceeded:
		return fmt.Sprintf("%s %s %s", p.styles.Success.Render(IconSuccess), id,
			p.styles.Muted.Render(fmt.Sprintf("(%s)", o.Duration.Round(time.Millisecond))))
	case step.StatusSkippedSatisfied:
		return fmt.Sprintf("%s %s %s", p.styles.Muted.Render(IconSatisfied), id, p.styles.Muted.Render("already satisfied"))
	case step.StatusFailed:
		return fmt.Sprintf("%s %s %s %s", p.styles.Error.Render(IconFailed), id,
			p.styles.Error.Render(p.humanize(string(o.Reason))), o.Detail)
	default:
		return fmt.Sprintf("%s %s %s", p.styles.Warning.Render(IconSkipped), id, p.styles.Muted.Render(o.Detail))
	}
}

// PrintRun prints the final summary of a run.
func (p *Printer) PrintRun(log *execution.RunLog) {
	sum := log.Summary()
	p.printf("\n%s\n", p.styles.Title.Render("Install Results"))
	p.printf("%s\n", p.styles.Muted.Render(fmt.Sprintf("run %s on %s", log.ID(), log.Host())))

	if failed := log.Failed(); len(failed) > 0 {
		p.printf("\n%s\n", p.styles.Heading.Render("Failed steps"))
		for _, o := range failed {
			p.printf("  %s\n", p.outcomeLine(o))
		}
	}

	p.printf("\nSummary: %s succeeded, %s already satisfied, %s skipped, %s failed in %s\n",
		p.styles.Success.Render(fmt.Sprint(sum.Succeeded)),
		fmt.Sprint(sum.Satisfied),
		fmt.Sprint(sum.NotApplicable),
		p.failedCount(sum.Failed),
		log.Duration().Round(time.Millisecond))
	if log.Cancelled() {
		p.printf("%s\n", p.styles.Warning.Render("Run was cancelled before every step finished."))
	}
}

// PrintPlan prints the dry-run plan.
func (p *Printer) PrintPlan(plan *execution.Plan) {
	sum := plan.Summary()
	p.printf("\n%s\n", p.styles.Title.Render("Install Plan"))
	p.printf("%s\n\n", p.styles.Muted.Render(plan.Host()))

	if !plan.HasChanges() {
		p.printf("No changes needed. Your environment is up to date.\n")
		return
	}

	p.printf("Steps: %d total, %d to execute, %d satisfied, %d skipped\n\n",
		sum.Total, sum.Execute, sum.Satisfied, sum.NotApplicable)

	for _, e := range plan.Entries() {
		id := p.styles.StepID.Render(e.Step.ID.String())
		switch {
		case e.Action == execution.ActionForce:
			p.printf("  %s %s %s\n", p.styles.Warning.Render(IconExecute), id, p.styles.Warning.Render("forced"))
		case e.Action == execution.ActionExecute:
			p.printf("  %s %s %s\n", p.styles.Info.Render(IconExecute), id, p.styles.Muted.Render(e.Step.Label()))
			if e.Detail != "" {
				p.printf("      %s\n", p.styles.Muted.Render(e.Detail))
			}
		case e.Status == step.StatusSkippedSatisfied:
			p.printf("  %s %s\n", p.styles.Muted.Render(IconSatisfied), id)
		case p.verbose:
			p.printf("  %s %s %s\n", p.styles.Muted.Render(IconSkipped), id, p.styles.Muted.Render(e.Detail))
		}
	}

	p.printf("\nRun 'envira install' to execute this plan.\n")
}

// PrintReport prints verification results.
func (p *Printer) PrintReport(r verify.Report) {
	passed, failed, skipped := r.Counts()
	p.printf("\n%s\n\n", p.styles.Title.Render("Verification"))
	for _, res := range r.Results {
		label := res.Check.Label
		switch {
		case res.Skipped:
			if p.verbose {
				p.printf("  %s %s\n", p.styles.Muted.Render(IconSkipped), p.styles.Muted.Render(label))
			}
		case res.Passed:
			p.printf("  %s %s\n", p.styles.Success.Render(IconSuccess), label)
		default:
			p.printf("  %s %s %s\n", p.styles.Error.Render(IconFailed), label, p.styles.Muted.Render(res.Detail))
		}
	}
	p.printf("\nChecks: %s passed, %s failed, %d skipped\n",
		p.styles.Success.Render(fmt.Sprint(passed)), p.failedCount(failed), skipped)
	if !r.Passed() {
		p.printf("%s %s\n", p.styles.Error.Render("Failing:"), strings.Join(r.FailingLabels(), ", "))
	}
}

// PrintCatalog lists steps grouped by method, then the checks.
func (p *Printer) PrintCatalog(c *catalog.Catalog) {
	p.printf("%s %s\n", p.styles.Title.Render("Catalog"), p.styles.Muted.Render(c.Source))

	for _, m := range step.Methods {
		var lines []string
		for _, s := range c.Steps {
			if s.Method != m {
				continue
			}
			line := fmt.Sprintf("  %-28s %s", s.ID.String(), s.Label())
			if !s.AppliesTo.IsZero() {
				line += " " + p.styles.Muted.Render(appliesTo(s.AppliesTo))
			}
			if len(s.DependsOn) > 0 {
				line += " " + p.styles.Muted.Render("after "+joinIDs(s.DependsOn))
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		p.printf("\n%s\n%s\n", p.styles.Heading.Render(p.humanize(string(m))), strings.Join(lines, "\n"))
	}

	p.printf("\n%s\n", p.styles.Heading.Render(fmt.Sprintf("Checks (%d)", len(c.Checks))))
	for _, ch := range c.Checks {
		p.printf("  %-36s %s %s\n", ch.Label, p.styles.Muted.Render(string(ch.Kind)), ch.Target)
	}
}

type detailedError interface {
	Format() string
}

// PrintError prints err with its location and suggestion when it has them.
func (p *Printer) PrintError(err error) {
	var de detailedError
	if errors.As(err, &de) {
		p.printf("%s %s\n", p.styles.Error.Render("Error:"), de.Format())
		return
	}
	p.printf("%s %v\n", p.styles.Error.Render("Error:"), err)
}

func (p *Printer) failedCount(n int) string {
	if n == 0 {
		return "0"
	}
	return p.styles.Error.Render(fmt.Sprint(n))
}

// humanize turns a kebab-case name into a title.
func (p *Printer) humanize(s string) string {
	return p.title.String(strings.ReplaceAll(s, "-", " "))
}

func appliesTo(a step.Applicability) string {
	var parts []string
	for _, f := range a.Families {
		parts = append(parts, string(f))
	}
	for _, m := range a.Modes {
		parts = append(parts, string(m))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func joinIDs(ids []step.ID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return strings.Join(out, ", ")
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}
