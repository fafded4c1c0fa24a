package balance

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/avila-gabriel/game-balance/pkg/logger"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// Budget bounds a balance run by iteration count, never by wall-clock time.
type Budget struct {
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// StagnationWindow is how many iterations may pass without improving the
	// best distance before the run is declared stagnated.
	StagnationWindow int `json:"stagnation_window" yaml:"stagnation_window"`
}

// DefaultBudget returns the budget used when none is configured.
func DefaultBudget() Budget {
	return Budget{
		MaxIterations:    200,
		StagnationWindow: 12,
	}
}

func (b Budget) withDefaults() Budget {
	def := DefaultBudget()
	if b.MaxIterations <= 0 {
		b.MaxIterations = def.MaxIterations
	}
	if b.StagnationWindow <= 0 {
		b.StagnationWindow = def.StagnationWindow
	}
	return b
}

// Completeness decides how KPIs without a target band are treated.
type Completeness int

const (
	// IgnoreUnbound checks only the KPIs present in Targets.
	IgnoreUnbound Completeness = iota
	// RequireAll rejects Targets that omit any KPI the system produces.
	RequireAll
)

func (c Completeness) String() string {
	if c == RequireAll {
		return "require_all"
	}
	return "ignore_unbound"
}

// ParseCompleteness parses "ignore_unbound" or "require_all"; empty means ignore_unbound.
func ParseCompleteness(s string) (Completeness, error) {
	switch strings.ToLower(s) {
	case "", "ignore_unbound":
		return IgnoreUnbound, nil
	case "require_all":
		return RequireAll, nil
	default:
		return IgnoreUnbound, fmt.Errorf("unknown completeness policy %q (must be ignore_unbound or require_all)", s)
	}
}

// Step records one simulate-and-compare iteration.
type Step struct {
	Iteration int     `json:"iteration"`
	Params    Params  `json:"params"`
	Obs       Obs     `json:"obs"`
	Distance  float64 `json:"distance"`
}

// Outcome is the immutable result of a balance run.
type Outcome struct {
	System     string `json:"system"`
	Params     Params `json:"params"`
	Obs        Obs    `json:"obs"`
	Converged  bool   `json:"converged"`
	Iterations int    `json:"iterations"`
	Reason     Reason `json:"reason"`
	// Distance is the normalised band error of Obs, or -1 when nothing was simulated.
	Distance float64 `json:"distance"`
	Detail   string  `json:"detail,omitempty"`
	Err      error   `json:"-"`
	History  []Step  `json:"history,omitempty"`
}

// Observer is called after every iteration of a run.
type Observer func(system string, step Step)

// Balancer drives Params toward Targets by repeated simulate-and-adjust.
// A Balancer holds configuration only and may be reused across runs.
type Balancer struct {
	budget       Budget
	completeness Completeness
	seed         int64
	clampInitial bool
	keepHistory  bool
	stopRule     StopRule
	observer     Observer
	logger       *slog.Logger
}

// NewBalancer creates a balancer with the given iteration budget.
func NewBalancer(budget Budget) *Balancer {
	budget = budget.withDefaults()
	return &Balancer{
		budget:      budget,
		keepHistory: true,
		stopRule:    NewNoImprovementRule(budget.StagnationWindow),
	}
}

// WithCompleteness sets the Targets-completeness policy.
func (b *Balancer) WithCompleteness(c Completeness) *Balancer {
	b.completeness = c
	return b
}

// WithSeed sets the seed every simulate call of a run is driven by.
func (b *Balancer) WithSeed(seed int64) *Balancer {
	b.seed = seed
	return b
}

// WithClampInitial makes out-of-domain initial Params get clamped instead of rejected.
func (b *Balancer) WithClampInitial(clamp bool) *Balancer {
	b.clampInitial = clamp
	return b
}

// WithHistory controls whether Outcome.History is populated.
func (b *Balancer) WithHistory(keep bool) *Balancer {
	b.keepHistory = keep
	return b
}

// WithStopRule replaces the stagnation rule.
func (b *Balancer) WithStopRule(rule StopRule) *Balancer {
	if rule != nil {
		b.stopRule = rule
	}
	return b
}

// WithObserver registers a callback invoked after every iteration.
func (b *Balancer) WithObserver(obs Observer) *Balancer {
	b.observer = obs
	return b
}

// WithLogger sets the logger; by default the package logger is used.
func (b *Balancer) WithLogger(l *slog.Logger) *Balancer {
	b.logger = l
	return b
}

// Budget returns the effective budget.
func (b *Balancer) Budget() Budget {
	return b.budget
}

func (b *Balancer) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return logger.Default
}

// Simulate runs sys once under the system's default Env overlaid with env,
// using a generator seeded with seed. Non-finite KPIs are reported as a
// degenerate model.
func Simulate(sys System, p Params, env Env, seed int64) (Obs, error) {
	env = sys.Spec().Env.Merge(env)
	obs, err := sys.Simulate(p.Clone(), env, utils.NewRandSource(seed))
	if err != nil {
		return nil, err
	}
	for _, k := range sys.Spec().KPIs {
		if _, ok := obs[k]; !ok {
			return nil, fmt.Errorf("%s did not report KPI %s", sys.Name(), k)
		}
	}
	keys := make([]string, 0, len(obs))
	for k := range obs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !utils.IsFinite(obs[k]) {
			return nil, Degenerate("%s produced non-finite %s=%v", sys.Name(), k, obs[k])
		}
	}
	return obs, nil
}

// Balance searches for Params whose simulated Obs satisfy targets.
//
// Malformed or incomplete Targets are rejected up front with an error and no
// iteration is run. Every other failure, including invalid initial Params,
// resolves to an Outcome with Converged=false and a Reason.
func (b *Balancer) Balance(sys System, params0 Params, env Env, targets Targets) (*Outcome, error) {
	if sys == nil {
		return nil, errors.New("system is required")
	}
	spec := sys.Spec()
	if err := b.checkTargets(spec, targets); err != nil {
		return nil, fmt.Errorf("%s: %w", sys.Name(), err)
	}

	log := b.log().With("system", sys.Name())
	env = spec.Env.Merge(env)

	params, err := b.initialParams(spec, params0, log)
	if err != nil {
		log.Warn("initial params rejected", "error", err)
		return &Outcome{
			System:   sys.Name(),
			Params:   params0.Clone(),
			Obs:      Obs{},
			Reason:   ReasonInvalidParams,
			Distance: -1,
			Detail:   err.Error(),
			Err:      err,
		}, nil
	}

	r := &run{
		balancer: b,
		sys:      sys,
		spec:     spec,
		env:      env,
		targets:  targets,
		log:      log,
	}
	out := r.loop(params)
	log.Info("balance finished",
		"converged", out.Converged,
		"reason", out.Reason,
		"iterations", out.Iterations,
		"distance", out.Distance,
	)
	return out, nil
}

func (b *Balancer) checkTargets(spec Spec, targets Targets) error {
	for _, kpi := range targets.KPIs() {
		band := targets[kpi]
		if !spec.HasKPI(kpi) {
			return fmt.Errorf("%w: unknown KPI %q", ErrMalformedTargets, kpi)
		}
		if !band.Valid() {
			return fmt.Errorf("%w: band for %s is [%g, %g]", ErrMalformedTargets, kpi, band.Min, band.Max)
		}
	}

	if b.completeness == RequireAll {
		var missing []string
		for _, kpi := range spec.KPIs {
			if _, ok := targets[kpi]; !ok {
				missing = append(missing, kpi)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: no band for %s", ErrIncompleteTargets, strings.Join(missing, ", "))
		}
	}
	return nil
}

func (b *Balancer) initialParams(spec Spec, params0 Params, log *slog.Logger) (Params, error) {
	params := spec.Defaults()

	names := make([]string, 0, len(params0))
	for k := range params0 {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		v := params0[name]
		ps, ok := spec.Param(name)
		if !ok {
			return nil, &ParamDomainError{Param: name, Value: v, Unknown: true}
		}
		if math.IsNaN(v) {
			return nil, &ParamDomainError{Param: name, Value: v, Domain: ps.Domain}
		}
		if !ps.Domain.Contains(v) {
			if !b.clampInitial {
				return nil, &ParamDomainError{Param: name, Value: v, Domain: ps.Domain}
			}
			clamped := ps.Domain.Clamp(v)
			log.Warn("initial param clamped into domain", "param", name, "value", v, "clamped", clamped)
			v = clamped
		}
		params[name] = v
	}
	return params, nil
}

// controlState tracks the adaptive step of one KPI→param control.
type controlState struct {
	control   Control
	domain    Domain
	step      float64
	lastSign  float64
	bracketed bool
	// moved is the clamped change the last adjustment applied.
	moved float64
}

type run struct {
	balancer *Balancer
	sys      System
	spec     Spec
	env      Env
	targets  Targets
	log      *slog.Logger

	controls []controlState
	history  []Step
	best     *Step
}

func (r *run) loop(params Params) *Outcome {
	r.controls = r.activeControls(params)
	budget := r.balancer.budget

	for iter := 1; iter <= budget.MaxIterations; iter++ {
		obs, err := Simulate(r.sys, params, r.env, r.balancer.seed)
		if err != nil {
			reason := ReasonSimulationFailed
			if errors.Is(err, ErrDegenerateModel) {
				reason = ReasonDegenerateModel
				if next, ok := r.retreat(); ok {
					r.log.Debug("degenerate params after adjustment, backing off", "iteration", iter, "error", err)
					params = next
					continue
				}
			}
			return r.fail(iter, reason, err, params)
		}

		step := Step{
			Iteration: iter,
			Params:    params.Clone(),
			Obs:       obs,
			Distance:  r.targets.Distance(obs),
		}
		r.history = append(r.history, step)
		if r.best == nil || step.Distance < r.best.Distance {
			best := step
			r.best = &best
		}
		if r.balancer.observer != nil {
			r.balancer.observer(r.sys.Name(), step)
		}
		r.log.Debug("balance iteration", "iteration", iter, "distance", step.Distance)

		if r.targets.Satisfied(obs) {
			return r.outcome(step, iter, true, ReasonConverged, nil)
		}
		if stop, why := r.balancer.stopRule.Check(r.history); stop {
			return r.outcome(*r.best, iter, false, ReasonStagnated, fmt.Errorf("%w: %s", ErrNonConvergence, why))
		}

		params = r.adjust(params, obs)
	}

	err := fmt.Errorf("%w: budget of %d iterations exhausted", ErrNonConvergence, budget.MaxIterations)
	return r.outcome(*r.best, budget.MaxIterations, false, ReasonBudgetExhausted, err)
}

// activeControls keeps the controls whose KPI is bound and whose parameter is
// declared, in declaration order.
func (r *run) activeControls(params Params) []controlState {
	var out []controlState
	for _, c := range r.spec.Controls {
		if _, ok := r.targets[c.KPI]; !ok {
			continue
		}
		ps, ok := r.spec.Param(c.Param)
		if !ok || utils.Sign(c.Sign) == 0 {
			continue
		}
		c.Sign = utils.Sign(c.Sign)
		out = append(out, controlState{
			control: c,
			domain:  ps.Domain,
			step:    initialStep(params[c.Param], ps),
		})
	}
	return out
}

func initialStep(v float64, ps ParamSpec) float64 {
	return math.Max(math.Max(0.25*math.Abs(v), ps.Step), 1e-6)
}

// adjust moves each controlled parameter against the sign of its KPI error.
// The step doubles until the error changes sign, halves on every sign flip,
// and grows gently while the sign persists after bracketing.
func (r *run) adjust(params Params, obs Obs) Params {
	deltas := make(map[string]float64, len(r.controls))

	for i := range r.controls {
		st := &r.controls[i]
		st.moved = 0
		e := r.targets[st.control.KPI].Error(obs[st.control.KPI])
		if e == 0 {
			continue
		}
		sign := utils.Sign(e)
		switch {
		case st.lastSign == 0:
		case sign != st.lastSign:
			st.step /= 2
			st.bracketed = true
		case st.bracketed:
			st.step *= 1.25
		default:
			st.step *= 2
		}
		if w := st.domain.Width(); utils.IsFinite(w) && st.step > w {
			st.step = w
		}
		st.lastSign = sign
		st.moved = -sign * st.control.Sign * st.step
		deltas[st.control.Param] += st.moved
	}

	next := params.Clone()
	for _, ps := range r.spec.Params {
		if d, ok := deltas[ps.Name]; ok {
			next[ps.Name] = ps.Domain.Clamp(next[ps.Name] + d)
		}
	}
	r.recordMoves(params, next)
	return next
}

// retreat treats a degenerate simulation that follows an adjustment as an
// overshoot. It goes back to the last simulated Params and retries with half
// of the move each control actually made, marking those controls bracketed.
// It reports false when there is nothing to back off from.
func (r *run) retreat() (Params, bool) {
	if len(r.history) == 0 {
		return nil, false
	}
	last := r.history[len(r.history)-1].Params

	deltas := make(map[string]float64, len(r.controls))
	for i := range r.controls {
		st := &r.controls[i]
		if st.moved == 0 {
			continue
		}
		half := st.moved / 2
		if math.Abs(half) < minRetreat {
			st.moved = 0
			continue
		}
		st.moved = half
		st.step = math.Abs(half)
		st.bracketed = true
		deltas[st.control.Param] += half
	}
	if len(deltas) == 0 {
		return nil, false
	}

	next := last.Clone()
	for _, ps := range r.spec.Params {
		if d, ok := deltas[ps.Name]; ok {
			next[ps.Name] = ps.Domain.Clamp(next[ps.Name] + d)
		}
	}
	r.recordMoves(last, next)
	return next, true
}

// minRetreat is the smallest move a retreat will still try.
const minRetreat = 1e-9

// recordMoves splits the change from prev to next across the controls that
// drive each parameter, so a later retreat can halve it.
func (r *run) recordMoves(prev, next Params) {
	drivers := make(map[string]int, len(r.controls))
	for _, st := range r.controls {
		if st.moved != 0 {
			drivers[st.control.Param]++
		}
	}
	for i := range r.controls {
		st := &r.controls[i]
		if n := drivers[st.control.Param]; n > 0 && st.moved != 0 {
			st.moved = (next[st.control.Param] - prev[st.control.Param]) / float64(n)
		}
	}
}

func (r *run) outcome(at Step, iterations int, converged bool, reason Reason, err error) *Outcome {
	out := &Outcome{
		System:     r.sys.Name(),
		Params:     at.Params.Clone(),
		Obs:        at.Obs.Clone(),
		Converged:  converged,
		Iterations: iterations,
		Reason:     reason,
		Distance:   at.Distance,
		Err:        err,
	}
	if err != nil {
		out.Detail = err.Error()
		r.log.Info("balance stopped", "reason", reason, "detail", out.Detail)
	}
	if r.balancer.keepHistory {
		out.History = r.history
	}
	return out
}

// fail reports a simulation error. The best step seen so far is returned when
// there is one; otherwise the Params that failed are returned with empty Obs
// and a negative distance.
func (r *run) fail(iterations int, reason Reason, err error, params Params) *Outcome {
	at := Step{Params: params, Obs: Obs{}, Distance: -1}
	if r.best != nil {
		at = *r.best
	}
	r.log.Warn("simulation failed", "iteration", iterations, "error", err)
	return r.outcome(at, iterations, false, reason, err)
}
