package server

import (
	"testing"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/pkg/logger"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

const coreScenario = `
name: core-only
stages:
  - name: core
    system: production_spend
    params: {generator: 5, spend: 3, stock0: 0}
    env: {horizon: 1000}
    targets:
      utilization: {min: 0.9, max: 1}
      ttu: {min: 40, max: 60}
`

func newTestExecutor(t *testing.T) (*RunStore, *Executor, *registry.Registry) {
	t.Helper()
	store := NewRunStore()
	reg := registry.Default()
	exec := NewExecutor(store, reg, 2, logger.Discard())
	t.Cleanup(exec.Wait)
	return store, exec, reg
}

// panicSystem blows up on every simulation.
type panicSystem struct{}

func (panicSystem) Name() string { return "panicky" }

func (panicSystem) Spec() balance.Spec {
	return balance.Spec{
		Params: []balance.ParamSpec{{Name: "x", Domain: balance.Domain{Min: 0, Max: 1}, Default: 0.5}},
		KPIs:   []string{"y"},
	}
}

func (panicSystem) Simulate(balance.Params, balance.Env, *utils.RandSource) (balance.Obs, error) {
	panic("index out of range")
}
