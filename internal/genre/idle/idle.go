// Package idle wires the idle-game pipeline: the core production loop feeds
// its income into the upgrade curve and prestige stages, and offline
// accumulation is tuned last.
package idle

import (
	"context"
	"fmt"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/internal/systems"
)

// Name is the registry name of the idle genre.
const Name = "idle"

const (
	StageCore     = "core"
	StageCurve    = "curve"
	StagePrestige = "prestige"
	StageOffline  = "offline"

	// SignalAFKMinutes is the designer default for time spent away.
	SignalAFKMinutes = "designer.afk_minutes"
)

// IncomeSignal is the signal carrying the core stage's effective income.
var IncomeSignal = genre.SignalName(StageCore, systems.KPIIncome)

// Targets are the designer-facing bands of the idle pipeline.
type Targets struct {
	TTU         balance.Band `json:"ttu"`
	Utilization balance.Band `json:"utilization"`
	Slope       balance.Band `json:"slope"`
	Cycle       balance.Band `json:"cycle"`
	Growth      balance.Band `json:"growth"`
	Retain      balance.Band `json:"retain"`
	AFKMinutes  float64      `json:"afk_minutes"`
}

func DefaultTargets() Targets {
	return Targets{
		TTU:         balance.Between(40, 60),
		Utilization: balance.Between(0.9, 1),
		Slope:       balance.Around(1.15, 0.03),
		Cycle:       balance.Around(20, 1),
		Growth:      balance.Around(10, 0.5),
		Retain:      balance.Around(0.7, 0.02),
		AFKMinutes:  180,
	}
}

type Options struct {
	Targets   Targets
	Modifiers []systems.IncomeModifier
	// Params optionally overrides the initial Params of a stage by name.
	Params map[string]balance.Params
}

func DefaultOptions() Options {
	return Options{Targets: DefaultTargets()}
}

// DefaultSignals are the designer inputs the pipeline starts from.
func DefaultSignals(t Targets) genre.Signals {
	return genre.Signals{SignalAFKMinutes: t.AFKMinutes}
}

func fixed(t balance.Targets) func(genre.Input) (balance.Targets, error) {
	return func(genre.Input) (balance.Targets, error) {
		return t, nil
	}
}

// refIncome feeds the core income into a stage's ref_income. A missing
// signal leaves ref_income unset, which the systems report as degenerate.
func refIncome(in genre.Input) balance.Env {
	if v, ok := in.Signal(IncomeSignal); ok {
		return balance.Env{systems.EnvRefIncome: v}
	}
	return nil
}

// Stages builds the four idle stages.
func Stages(opts Options) []genre.Stage {
	t := opts.Targets
	return []genre.Stage{
		{
			Name:   StageCore,
			System: systems.NewProductionSpend(opts.Modifiers...),
			Params: opts.Params[StageCore],
			Targets: fixed(balance.Targets{
				systems.KPIUtilization: t.Utilization,
				systems.KPITTU:         t.TTU,
			}),
		},
		{
			Name:    StageCurve,
			System:  systems.NewUpgradeCostCurve(),
			Params:  opts.Params[StageCurve],
			EnvFrom: refIncome,
			Targets: fixed(balance.Targets{
				systems.KPITTUMean:  t.TTU,
				systems.KPITTUSlope: t.Slope,
			}),
		},
		{
			Name:    StagePrestige,
			System:  systems.NewResetPrestige(),
			Params:  opts.Params[StagePrestige],
			EnvFrom: refIncome,
			Targets: fixed(balance.Targets{
				systems.KPICycle:       t.Cycle,
				systems.KPICycleGrowth: t.Growth,
			}),
		},
		{
			Name:   StageOffline,
			System: systems.NewOfflineAccumulation(),
			Params: opts.Params[StageOffline],
			EnvFrom: func(in genre.Input) balance.Env {
				if v, ok := in.Signal(SignalAFKMinutes); ok {
					return balance.Env{systems.EnvAFKMinutes: v}
				}
				return nil
			},
			Targets: fixed(balance.Targets{
				systems.KPIRetain: t.Retain,
			}),
		},
	}
}

// Run balances the idle pipeline.
func Run(ctx context.Context, opts Options, cfg genre.Config) (*genre.Result, error) {
	res, err := genre.Run(ctx, Stages(opts), DefaultSignals(opts.Targets), cfg)
	if err != nil {
		return res, fmt.Errorf("idle: %w", err)
	}
	return res, nil
}
