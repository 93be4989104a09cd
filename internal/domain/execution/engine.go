package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/driver"
	"github.com/felixgeelhaar/envira/internal/ports"
)

// Observer receives live progress. StepStarted may be called from several
// goroutines at once; StepFinished is called from one goroutine, in
// completion order.
type Observer interface {
	StepStarted(s step.Step, attempt int)
	StepFinished(o Outcome)
}

// Recorder receives per-step measurements.
type Recorder interface {
	StepFinished(o Outcome)
	StepRetried(m step.Method)
}

// Engine runs catalog steps through their drivers.
type Engine struct {
	drivers  *driver.Registry
	policy   Policy
	observer Observer
	recorder Recorder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithRecorder sets the measurement recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine dispatching to drivers.
func NewEngine(drivers *driver.Registry, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		drivers: drivers,
		policy:  policy.normalized(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// prepared is a validated run: steps in topological order plus the
// resolved selection.
type prepared struct {
	graph *step.Graph
	order []step.Step
	index map[step.ID]int
	only  map[step.ID]bool
	skip  map[step.ID]bool
	force map[step.ID]bool
}

// prepare validates the catalog and the selection. Every error is a
// configuration error.
func (e *Engine) prepare(steps []step.Step, sel Selection) (*prepared, error) {
	graph, err := step.BuildGraph(steps)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	order, err := graph.Order()
	if err != nil {
		return nil, err
	}
	if missing := e.drivers.Missing(steps); len(missing) > 0 {
		for _, s := range order {
			if s.Method == missing[0] {
				return nil, step.NewInvalidStepError(s.ID.String(), fmt.Errorf("no driver for method %q", s.Method))
			}
		}
	}

	p := &prepared{
		graph: graph,
		order: order,
		index: make(map[step.ID]int, len(order)),
		skip:  make(map[step.ID]bool),
		force: make(map[step.ID]bool),
	}
	for i, s := range order {
		p.index[s.ID] = i
	}
	if len(sel.Only) > 0 {
		only, missing := graph.WithDependencies(sel.Only)
		if len(missing) > 0 {
			return nil, unknownSelection("only", missing[0])
		}
		p.only = only
	}
	for _, id := range sel.Skip {
		if _, ok := graph.Get(id); !ok {
			return nil, unknownSelection("skip", id)
		}
		p.skip[id] = true
	}
	for _, id := range sel.Force {
		if _, ok := graph.Get(id); !ok {
			return nil, unknownSelection("force", id)
		}
		p.force[id] = true
	}
	return p, nil
}

func unknownSelection(flag string, id step.ID) error {
	return step.NewInvalidStepError(id.String(), fmt.Errorf("--%s names an unknown step", flag)).
		WithSuggestion("List the catalog with 'envira catalog'")
}

// gate decides whether s can be skipped without calling a driver. It
// returns false when the step must be dispatched.
func (p *prepared) gate(s step.Step, f platform.Facts, done func(step.ID) (Outcome, bool)) (Outcome, bool) {
	switch {
	case p.skip[s.ID]:
		return newOutcome(s, step.StatusSkippedNotApplicable, step.ReasonExcluded, "skipped by request"), true
	case p.only != nil && !p.only[s.ID]:
		return newOutcome(s, step.StatusSkippedNotApplicable, step.ReasonExcluded, "not selected"), true
	}
	if reason := s.NotApplicable(f); reason != "" {
		return newOutcome(s, step.StatusSkippedNotApplicable, step.ReasonNotApplicable, reason), true
	}
	for _, dep := range s.DependsOn {
		if o, ok := done(dep); ok && o.Blocks() {
			return newOutcome(s, step.StatusSkippedNotApplicable, step.ReasonDependencyBlocked,
				"blocked by dependency failure: "+dep.String()), true
		}
	}
	return Outcome{}, false
}

// Run executes the catalog. A configuration error is returned before any
// driver is called; step failures are recorded in the RunLog instead.
// When ctx is cancelled no new step starts, in-flight steps get the grace
// period, and the partial log is returned with ctx's error.
func (e *Engine) Run(ctx context.Context, steps []step.Step, f platform.Facts, sel Selection) (*RunLog, error) {
	state, err := NewRunState()
	if err != nil {
		return nil, err
	}
	p, err := e.prepare(steps, sel)
	if err != nil {
		state.Abort()
		return nil, err
	}
	state.Start()

	log := newRunLog(f.String(), len(p.order), e.now())
	logger := ports.LoggerFromContext(ctx)
	if logger != nil {
		logger.Info(ctx, "run started", ports.F("run", log.ID()), ports.F("host", f.String()),
			ports.F("steps", len(p.order)), ports.F("workers", e.policy.Workers))
	}

	// Step contexts outlive ctx by the grace period.
	stepCtx, kill := context.WithCancel(context.WithoutCancel(ctx))
	defer kill()
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			timer := time.NewTimer(e.policy.Grace)
			defer timer.Stop()
			select {
			case <-timer.C:
				kill()
			case <-finished:
			}
		case <-finished:
		}
	}()

	e.schedule(ctx, stepCtx, p, f, log)
	close(finished)

	cancelled := ctx.Err() != nil
	log.finish(e.now(), cancelled)
	state.Complete(!cancelled && log.AllSucceeded())
	log.setPhase(state.Phase())
	if logger != nil {
		sum := log.Summary()
		logger.Info(ctx, "run finished", ports.F("run", log.ID()), ports.F("phase", string(state.Phase())),
			ports.F("succeeded", sum.Succeeded), ports.F("failed", sum.Failed), ports.F("duration", log.Duration()))
	}
	if cancelled {
		return log, ctx.Err()
	}
	return log, nil
}

type completion struct {
	index   int
	outcome Outcome
}

// schedule dispatches ready steps to a bounded pool, earliest topological
// position first, and records every outcome. Outcomes are handled on the
// calling goroutine only.
func (e *Engine) schedule(ctx, stepCtx context.Context, p *prepared, f platform.Facts, log *RunLog) {
	var g errgroup.Group
	g.SetLimit(e.policy.Workers)

	remaining := make([]int, len(p.order))
	outcomes := make(map[step.ID]Outcome, len(p.order))
	var ready []int
	for i, s := range p.order {
		remaining[i] = len(s.DependsOn)
		if remaining[i] == 0 {
			ready = append(ready, i)
		}
	}
	done := func(id step.ID) (Outcome, bool) {
		o, ok := outcomes[id]
		return o, ok
	}

	results := make(chan completion, len(p.order))
	pending := len(p.order)
	inflight := 0

	finish := func(i int, o Outcome) {
		s := p.order[i]
		outcomes[s.ID] = o
		log.record(i, o)
		pending--
		if e.observer != nil {
			e.observer.StepFinished(o)
		}
		if e.recorder != nil {
			e.recorder.StepFinished(o)
		}
		for _, dep := range p.graph.Dependents(s.ID) {
			j := p.index[dep]
			remaining[j]--
			if remaining[j] == 0 {
				ready = insertSorted(ready, j)
			}
		}
	}

	for pending > 0 {
		for len(ready) > 0 {
			i := ready[0]
			s := p.order[i]

			if o, skip := p.gate(s, f, done); skip {
				ready = ready[1:]
				finish(i, o)
				continue
			}
			if ctx.Err() != nil {
				ready = ready[1:]
				finish(i, newOutcome(s, step.StatusSkippedNotApplicable, step.ReasonCancelled, "run cancelled"))
				continue
			}

			if inflight >= e.policy.Workers {
				break
			}
			force := p.force[s.ID]
			ready = ready[1:]
			inflight++
			g.Go(func() error {
				results <- completion{index: i, outcome: e.runStep(ctx, stepCtx, s, f, force)}
				return nil
			})
		}

		if pending == 0 {
			break
		}
		if inflight == 0 && len(ready) == 0 {
			// Unreachable for a validated acyclic graph.
			break
		}
		c := <-results
		inflight--
		finish(c.index, c.outcome)
	}
	_ = g.Wait()
}

func insertSorted(list []int, v int) []int {
	i := sort.SearchInts(list, v)
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

// runStep checks and executes one step with retries. Driver panics are
// contained as permanent failures.
func (e *Engine) runStep(runCtx, ctx context.Context, s step.Step, f platform.Facts, force bool) (out Outcome) {
	start := e.now()
	out = newOutcome(s, step.StatusFailed, step.ReasonPermanent, "")
	defer func() {
		if r := recover(); r != nil {
			out = newOutcome(s, step.StatusFailed, step.ReasonPermanent, fmt.Sprintf("driver panic: %v", r))
			out.Err = fmt.Errorf("%w: driver panic: %v", driver.ErrPermanent, r)
		}
		out.Duration = e.now().Sub(start)
	}()

	logger := ports.LoggerFromContext(ctx)
	if logger != nil {
		logger = logger.With(ports.StepFields(s.ID.String(), string(s.Method))...)
		ctx = ports.ContextWithLogger(ctx, logger)
	}

	drv, _ := e.drivers.Get(s.Method)
	timeout := e.policy.timeoutFor(s)

	if !force {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		satisfied, err := drv.IsSatisfied(checkCtx, s, f)
		cancel()
		if err != nil && logger != nil {
			logger.Warn(ctx, "satisfaction check failed, executing", ports.Err(err))
		}
		if err == nil && satisfied {
			return newOutcome(s, step.StatusSkippedSatisfied, step.ReasonAlreadySatisfied, "already satisfied")
		}
	}

	for attempt := 1; ; attempt++ {
		if e.observer != nil {
			e.observer.StepStarted(s, attempt)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res := drv.Execute(attemptCtx, s, f)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if res.Success {
			out = newOutcome(s, step.StatusSucceeded, step.ReasonNone, res.Detail)
			out.Attempts = attempt
			return out
		}

		err := res.Err
		if err == nil {
			err = errors.New(res.Detail)
		}
		if timedOut && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", context.DeadlineExceeded, timeout, err)
		}
		class := driver.Classify(err)
		if runCtx.Err() != nil || ctx.Err() != nil {
			class = driver.ClassCancelled
		}
		if logger != nil {
			logger.Warn(ctx, "attempt failed", ports.F("attempt", attempt), ports.F("class", class.String()), ports.Err(err))
		}

		if !class.Retryable() || attempt >= e.policy.Attempts {
			out = newOutcome(s, step.StatusFailed, reasonFor(class), res.Detail)
			if out.Detail == "" {
				out.Detail = err.Error()
			}
			out.Attempts = attempt
			out.Err = err
			return out
		}

		if e.recorder != nil {
			e.recorder.StepRetried(s.Method)
		}
		if err := e.sleep(runCtx, e.policy.backoff(attempt)); err != nil {
			out = newOutcome(s, step.StatusFailed, step.ReasonCancelled, "run cancelled during retry backoff")
			out.Attempts = attempt
			out.Err = err
			return out
		}
	}
}

func reasonFor(c driver.Class) step.Reason {
	switch c {
	case driver.ClassTransient:
		return step.ReasonTransient
	case driver.ClassToolNotFound:
		return step.ReasonToolNotFound
	case driver.ClassCancelled:
		return step.ReasonCancelled
	default:
		return step.ReasonPermanent
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
