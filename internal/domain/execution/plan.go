package execution

import (
	"context"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// Action is what a run would do with a step.
type Action string

// Planned actions.
const (
	ActionExecute Action = "execute"
	ActionForce   Action = "force"
	ActionSkip    Action = "skip"
)

// PlanEntry is the planned handling of a single step.
type PlanEntry struct {
	Step   step.Step
	Action Action
	// Status is the status the step would be recorded with when skipped.
	Status step.Status
	Reason step.Reason
	Detail string
}

// PlanSummary provides aggregate statistics about a plan.
type PlanSummary struct {
	Total         int
	Execute       int
	Satisfied     int
	NotApplicable int
}

// Plan is a dry run: every step in topological order with the action a
// run would take. Dependents of steps that would execute are planned as if
// their dependencies succeed.
type Plan struct {
	host    string
	entries []PlanEntry
}

// Host describes the facts the plan used.
func (p *Plan) Host() string { return p.host }

// Entries returns all plan entries.
func (p *Plan) Entries() []PlanEntry { return p.entries }

// Len returns the number of entries.
func (p *Plan) Len() int { return len(p.entries) }

// HasChanges returns true if any step would execute.
func (p *Plan) HasChanges() bool {
	for _, e := range p.entries {
		if e.Action != ActionSkip {
			return true
		}
	}
	return false
}

// Summary returns aggregate statistics.
func (p *Plan) Summary() PlanSummary {
	s := PlanSummary{Total: len(p.entries)}
	for _, e := range p.entries {
		switch {
		case e.Action != ActionSkip:
			s.Execute++
		case e.Status == step.StatusSkippedSatisfied:
			s.Satisfied++
		default:
			s.NotApplicable++
		}
	}
	return s
}

// Plan validates the catalog and evaluates applicability and satisfaction
// of every step without executing anything.
func (e *Engine) Plan(ctx context.Context, steps []step.Step, f platform.Facts, sel Selection) (*Plan, error) {
	p, err := e.prepare(steps, sel)
	if err != nil {
		return nil, err
	}

	plan := &Plan{host: f.String(), entries: make([]PlanEntry, 0, len(p.order))}
	outcomes := make(map[step.ID]Outcome, len(p.order))
	done := func(id step.ID) (Outcome, bool) {
		o, ok := outcomes[id]
		return o, ok
	}

	for _, s := range p.order {
		if o, skip := p.gate(s, f, done); skip {
			outcomes[s.ID] = o
			plan.entries = append(plan.entries, PlanEntry{Step: s, Action: ActionSkip, Status: o.Status, Reason: o.Reason, Detail: o.Detail})
			continue
		}
		if p.force[s.ID] {
			plan.entries = append(plan.entries, PlanEntry{Step: s, Action: ActionForce, Detail: "forced"})
			continue
		}

		drv, _ := e.drivers.Get(s.Method)
		checkCtx, cancel := context.WithTimeout(ctx, e.policy.timeoutFor(s))
		satisfied, err := drv.IsSatisfied(checkCtx, s, f)
		cancel()
		switch {
		case err != nil:
			plan.entries = append(plan.entries, PlanEntry{Step: s, Action: ActionExecute, Detail: "check failed: " + err.Error()})
		case satisfied:
			plan.entries = append(plan.entries, PlanEntry{Step: s, Action: ActionSkip,
				Status: step.StatusSkippedSatisfied, Reason: step.ReasonAlreadySatisfied, Detail: "already satisfied"})
		default:
			plan.entries = append(plan.entries, PlanEntry{Step: s, Action: ActionExecute})
		}
	}
	return plan, nil
}
