package registry

import (
	"fmt"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/internal/genre/idle"
	"github.com/avila-gabriel/game-balance/internal/systems"
)

// Default returns a registry holding every built-in system and genre.
func Default() *Registry {
	r := New()
	builtinSystems := map[string]SystemFactory{
		systems.ProductionSpendName:     func() balance.System { return systems.NewProductionSpend() },
		systems.UpgradeCostCurveName:    func() balance.System { return systems.NewUpgradeCostCurve() },
		systems.ResetPrestigeName:       func() balance.System { return systems.NewResetPrestige() },
		systems.OfflineAccumulationName: func() balance.System { return systems.NewOfflineAccumulation() },
		systems.MatchupName:             func() balance.System { return systems.NewMatchup() },
	}
	for name, f := range builtinSystems {
		// Names are distinct constants; registration into a fresh registry cannot fail.
		_ = r.RegisterSystem(name, f)
	}
	_ = r.RegisterGenre(idle.Name, idleGenre)
	return r
}

func idleGenre(opts GenreOptions) ([]genre.Stage, genre.Signals, error) {
	opt := idle.DefaultOptions()
	opt.Params = opts.Params
	opt.Modifiers = opts.Modifiers

	stages := idle.Stages(opt)
	known := make(map[string]bool, len(stages))
	for i := range stages {
		st := &stages[i]
		known[st.Name] = true
		if env, ok := opts.Env[st.Name]; ok {
			st.Env = st.Env.Merge(env)
		}
		if t, ok := opts.Targets[st.Name]; ok {
			t := t.Clone()
			st.Targets = func(genre.Input) (balance.Targets, error) { return t, nil }
		}
	}
	if err := checkStages(known, sortedKeys(opts.Params), sortedKeys(opts.Targets), sortedKeys(opts.Env)); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", idle.Name, err)
	}

	signals := idle.DefaultSignals(opt.Targets)
	for k, v := range opts.Signals {
		signals[k] = v
	}
	return stages, signals, nil
}

func checkStages(known map[string]bool, groups ...[]string) error {
	for _, names := range groups {
		for _, name := range names {
			if !known[name] {
				return fmt.Errorf("unknown stage %q", name)
			}
		}
	}
	return nil
}
