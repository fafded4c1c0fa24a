// Package genre chains balance stages into a pipeline. Each stage tunes one
// system and publishes signals that later stages read to derive their
// environment and targets.
package genre

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/pkg/logger"
)

// Signals are named values flowing between stages.
type Signals map[string]float64

func (s Signals) Clone() Signals {
	out := make(Signals, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the signal names in sorted order.
func (s Signals) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Input is what a stage sees when it derives its environment and targets.
// Prev is the previous stage's Obs (the designer defaults for the first
// stage, empty after a stage that errored); Signals holds the defaults plus everything earlier stages published.
type Input struct {
	Prev    balance.Obs
	Signals Signals
}

// Signal returns a signal value and whether it was published.
func (in Input) Signal(name string) (float64, bool) {
	v, ok := in.Signals[name]
	return v, ok
}

// Stage is one system to balance, with the wiring that feeds it from earlier stages.
type Stage struct {
	Name    string
	System  balance.System
	Params  balance.Params
	Env     balance.Env
	EnvFrom func(Input) balance.Env
	Targets func(Input) (balance.Targets, error)
	Publish func(*balance.Outcome) Signals
}

// SignalName is the default published name of a stage KPI.
func SignalName(stage, kpi string) string {
	return stage + "." + kpi
}

// PublishAll publishes every observed KPI of a stage as <stage>.<kpi>.
func PublishAll(stage string) func(*balance.Outcome) Signals {
	return func(out *balance.Outcome) Signals {
		sig := make(Signals, len(out.Obs))
		for k, v := range out.Obs {
			sig[SignalName(stage, k)] = v
		}
		return sig
	}
}

// FailurePolicy decides what happens downstream of a stage that did not converge.
type FailurePolicy int

const (
	// Continue runs downstream stages on the failed stage's best-effort Obs.
	Continue FailurePolicy = iota
	// Stop skips every remaining stage.
	Stop
)

func (p FailurePolicy) String() string {
	if p == Stop {
		return "stop"
	}
	return "continue"
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "", "continue":
		return Continue, nil
	case "stop":
		return Stop, nil
	default:
		return Continue, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Config holds the run-wide settings shared by every stage.
type Config struct {
	Budget        balance.Budget
	Completeness  balance.Completeness
	FailurePolicy FailurePolicy
	// Passes reruns the pipeline, each pass starting stages from the
	// previous pass's final Params. A pass where every stage converges ends
	// the run early.
	Passes   int
	Seed     int64
	Logger   *slog.Logger
	Observer balance.Observer
}

// StageResult records how one stage of a pass ended.
type StageResult struct {
	Name     string           `json:"name"`
	System   string           `json:"system"`
	Seed     int64            `json:"seed"`
	Env      balance.Env      `json:"env,omitempty"`
	Targets  balance.Targets  `json:"targets,omitempty"`
	Outcome  *balance.Outcome `json:"outcome,omitempty"`
	Skipped  bool             `json:"skipped,omitempty"`
	Err      error            `json:"-"`
	ErrorMsg string           `json:"error,omitempty"`
}

// Failed reports whether the stage errored, was skipped or did not converge.
func (s StageResult) Failed() bool {
	return s.Err != nil || s.Skipped || s.Outcome == nil || !s.Outcome.Converged
}

// Result is the outcome of a pipeline run, reporting the stages of its last pass.
type Result struct {
	Stages   []StageResult `json:"stages"`
	Signals  Signals       `json:"signals"`
	Degraded bool          `json:"degraded"`
	Passes   int           `json:"passes"`
}

// Converged reports whether every stage of the last pass converged.
func (r *Result) Converged() bool {
	if r == nil || len(r.Stages) == 0 {
		return false
	}
	for _, s := range r.Stages {
		if s.Failed() {
			return false
		}
	}
	return true
}

// Stage looks up a stage result by name.
func (r *Result) Stage(name string) (*StageResult, bool) {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i], true
		}
	}
	return nil, false
}

// Validate checks stage wiring before anything runs.
func Validate(stages []Stage) error {
	if len(stages) == 0 {
		return errors.New("pipeline has no stages")
	}
	seen := make(map[string]bool, len(stages))
	for i, st := range stages {
		if st.Name == "" {
			return fmt.Errorf("stage %d: name is required", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("duplicate stage name: %s", st.Name)
		}
		seen[st.Name] = true
		if st.System == nil {
			return fmt.Errorf("stage %s: system is required", st.Name)
		}
		if st.Targets == nil {
			return fmt.Errorf("stage %s: targets are required", st.Name)
		}
	}
	return nil
}

// Run executes the stages in order. The context is checked between stages;
// on cancellation the partial result is returned with the context error.
func Run(ctx context.Context, stages []Stage, defaults Signals, cfg Config) (*Result, error) {
	if err := Validate(stages); err != nil {
		return nil, err
	}
	if cfg.Passes <= 0 {
		cfg.Passes = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default
	}

	params := make([]balance.Params, len(stages))
	for i, st := range stages {
		params[i] = st.Params.Clone()
	}

	var res *Result
	for pass := 1; pass <= cfg.Passes; pass++ {
		res = &Result{Passes: pass}
		err := runPass(ctx, stages, defaults, cfg, params, res, log.With("pass", pass))
		if err != nil {
			return res, err
		}
		if !res.Degraded {
			break
		}
	}

	log.Info("pipeline finished",
		"stages", len(stages),
		"passes", res.Passes,
		"degraded", res.Degraded,
	)
	return res, nil
}

func runPass(ctx context.Context, stages []Stage, defaults Signals, cfg Config, params []balance.Params, res *Result, log *slog.Logger) error {
	signals := defaults.Clone()
	prev := balance.Obs(defaults.Clone())
	stopped := false
	defer func() { res.Signals = signals }()

	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			log.Warn("pipeline cancelled", "stage", st.Name, "error", err)
			return err
		}

		sr := StageResult{Name: st.Name, System: st.System.Name(), Seed: cfg.Seed + int64(i)}
		if stopped {
			sr.Skipped = true
			res.Stages = append(res.Stages, sr)
			continue
		}

		in := Input{Prev: prev.Clone(), Signals: signals.Clone()}
		out, err := runStage(st, in, params[i], cfg, &sr, log)
		if err != nil {
			sr.Err = err
			sr.ErrorMsg = err.Error()
			res.Degraded = true
			stopped = cfg.FailurePolicy == Stop
			log.Warn("stage failed", "stage", st.Name, "error", err)
			res.Stages = append(res.Stages, sr)
			prev = balance.Obs{}
			continue
		}

		sr.Outcome = out
		res.Stages = append(res.Stages, sr)
		if !out.Converged {
			res.Degraded = true
			stopped = cfg.FailurePolicy == Stop
		}

		publish := st.Publish
		if publish == nil {
			publish = PublishAll(st.Name)
		}
		for k, v := range publish(out) {
			signals[k] = v
		}
		prev = out.Obs
		params[i] = out.Params.Clone()
	}
	return nil
}

func runStage(st Stage, in Input, params balance.Params, cfg Config, sr *StageResult, log *slog.Logger) (*balance.Outcome, error) {
	targets, err := st.Targets(in)
	if err != nil {
		return nil, fmt.Errorf("stage %s: deriving targets: %w", st.Name, err)
	}
	sr.Targets = targets

	env := st.Env.Merge(nil)
	if st.EnvFrom != nil {
		env = env.Merge(st.EnvFrom(in))
	}
	sr.Env = env

	b := balance.NewBalancer(cfg.Budget).
		WithCompleteness(cfg.Completeness).
		WithSeed(sr.Seed).
		WithObserver(cfg.Observer).
		WithLogger(log.With("stage", st.Name))

	out, err := b.Balance(st.System, params, env, targets)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", st.Name, err)
	}
	return out, nil
}
