// Package scenario turns a YAML scenario into a runnable genre pipeline.
package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/draft"
	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/internal/genre/idle"
	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/pkg/config"
)

// Plan is a scenario resolved against a registry, ready to run.
type Plan struct {
	Name    string
	Genre   string
	Stages  []genre.Stage
	Signals genre.Signals
	Config  genre.Config
	// Picks are the drafted card names, in pick order.
	Picks []string
}

// Build resolves systems, bands and signal wiring. Unknown systems, KPIs and
// params are reported here rather than halfway through a run.
func Build(s *config.Scenario, reg *registry.Registry, log *slog.Logger) (*Plan, error) {
	if err := config.ValidateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	completeness, err := balance.ParseCompleteness(s.Completeness)
	if err != nil {
		return nil, err
	}
	policy, err := genre.ParseFailurePolicy(s.FailurePolicy)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Name:  s.Name,
		Genre: s.Genre,
		Config: genre.Config{
			Budget: balance.Budget{
				MaxIterations:    s.Budget.MaxIterations,
				StagnationWindow: s.Budget.StagnationWindow,
			},
			Completeness:  completeness,
			FailurePolicy: policy,
			Passes:        s.Passes,
			Seed:          s.Seed,
			Logger:        log,
		},
	}

	if s.Preset() {
		err = buildPreset(s, reg, plan)
	} else {
		err = buildCustom(s, reg, plan)
	}
	if err != nil {
		return nil, err
	}

	for _, st := range plan.Stages {
		if err := checkParams(st); err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.Name, err)
		}
	}
	return plan, nil
}

// Run executes a built plan.
func (p *Plan) Run(ctx context.Context) (*genre.Result, error) {
	return genre.Run(ctx, p.Stages, p.Signals, p.Config)
}

// Run builds and executes a scenario.
func Run(ctx context.Context, s *config.Scenario, reg *registry.Registry, log *slog.Logger) (*genre.Result, *Plan, error) {
	plan, err := Build(s, reg, log)
	if err != nil {
		return nil, nil, err
	}
	res, err := plan.Run(ctx)
	return res, plan, err
}

func buildPreset(s *config.Scenario, reg *registry.Registry, plan *Plan) error {
	factory, err := reg.Genre(s.Genre)
	if err != nil {
		return err
	}

	opts := registry.GenreOptions{
		Params:  make(map[string]balance.Params),
		Targets: make(map[string]balance.Targets),
		Env:     make(map[string]balance.Env),
		Signals: genre.Signals(s.Signals),
	}
	for _, st := range s.Stages {
		if len(st.Params) > 0 {
			opts.Params[st.Name] = balance.Params(st.Params)
		}
		if len(st.Env) > 0 {
			opts.Env[st.Name] = balance.Env(st.Env)
		}
		if len(st.Targets) > 0 {
			opts.Targets[st.Name] = toTargets(st.Targets)
		}
	}

	if s.Draft != nil && s.Draft.Rounds > 0 {
		if s.Genre != idle.Name {
			return fmt.Errorf("genre %s does not support drafting", s.Genre)
		}
		mods, picks, err := idle.DraftModifiers(s.Draft.Rounds, draftConfig(s.Draft), s.Draft.Seed)
		if err != nil {
			return fmt.Errorf("draft: %w", err)
		}
		opts.Modifiers = mods
		plan.Picks = picks
	}

	stages, signals, err := factory(opts)
	if err != nil {
		return err
	}

	for _, override := range s.Stages {
		if override.System == "" {
			continue
		}
		for _, st := range stages {
			if st.Name == override.Name && st.System.Name() != override.System {
				return fmt.Errorf("stage %s runs %s, not %s", st.Name, st.System.Name(), override.System)
			}
		}
	}
	for _, st := range stages {
		if t, ok := opts.Targets[st.Name]; ok {
			if err := checkTargets(st.System, t); err != nil {
				return fmt.Errorf("stage %s: %w", st.Name, err)
			}
		}
	}

	plan.Stages = stages
	plan.Signals = signals
	return nil
}

func draftConfig(d *config.Draft) draft.Config {
	cfg := draft.DefaultConfig()
	if d.Options > 0 {
		cfg.OptionsPerRoll = d.Options
	}
	cfg.RerollsPerDraft = d.Rerolls
	if d.PrioritizeTier != nil {
		cfg.PrioritizeTier = *d.PrioritizeTier
	}
	return cfg
}

func buildCustom(s *config.Scenario, reg *registry.Registry, plan *Plan) error {
	for _, st := range s.Stages {
		sys, err := reg.System(st.System)
		if err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}

		static := toTargets(st.Targets)
		if err := checkTargets(sys, static); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
		derived := make(balance.Targets, len(st.TargetsFrom))
		for kpi := range st.TargetsFrom {
			derived[kpi] = balance.Between(0, 0)
		}
		if err := checkTargets(sys, derived); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}

		stage := genre.Stage{
			Name:    st.Name,
			System:  sys,
			Params:  balance.Params(st.Params),
			Env:     balance.Env(st.Env),
			Targets: targetsFrom(static, st.TargetsFrom),
		}
		if len(st.EnvFrom) > 0 {
			stage.EnvFrom = envFrom(st.EnvFrom)
		}
		plan.Stages = append(plan.Stages, stage)
	}

	plan.Signals = genre.Signals(s.Signals).Clone()
	return nil
}

func toTargets(bands map[string]config.Band) balance.Targets {
	out := make(balance.Targets, len(bands))
	for kpi, b := range bands {
		out[kpi] = balance.Between(b.Bounds())
	}
	return out
}

// targetsFrom merges static bands with bands scaled from signals.
func targetsFrom(static balance.Targets, from map[string]config.SignalBand) func(genre.Input) (balance.Targets, error) {
	return func(in genre.Input) (balance.Targets, error) {
		out := static.Clone()
		if out == nil {
			out = balance.Targets{}
		}
		for kpi, sb := range from {
			v, ok := in.Signal(sb.Signal)
			if !ok {
				return nil, fmt.Errorf("signal %s for target %s was not published", sb.Signal, kpi)
			}
			out[kpi] = balance.Between(sb.Bounds(v))
		}
		return out, nil
	}
}

// envFrom copies published signals into env keys; missing signals leave the
// key at its configured value.
func envFrom(keys map[string]string) func(genre.Input) balance.Env {
	return func(in genre.Input) balance.Env {
		env := balance.Env{}
		for key, signal := range keys {
			if v, ok := in.Signal(signal); ok {
				env[key] = v
			}
		}
		return env
	}
}

func checkTargets(sys balance.System, targets balance.Targets) error {
	spec := sys.Spec()
	for _, kpi := range targets.KPIs() {
		if !spec.HasKPI(kpi) {
			return fmt.Errorf("%w: %s has no KPI %q", balance.ErrMalformedTargets, sys.Name(), kpi)
		}
	}
	return nil
}

func checkParams(st genre.Stage) error {
	spec := st.System.Spec()
	for name := range st.Params {
		if _, ok := spec.Param(name); !ok {
			return fmt.Errorf("%w: %s has no param %q", balance.ErrInvalidParams, st.System.Name(), name)
		}
	}
	return nil
}
