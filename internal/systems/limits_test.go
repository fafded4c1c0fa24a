package systems

import (
	"errors"
	"math"
	"testing"

	"github.com/avila-gabriel/game-balance/internal/balance"
)

func TestSystemsRejectOversizedLoopCounts(t *testing.T) {
	tests := []struct {
		name string
		sys  balance.System
		env  balance.Env
	}{
		{"infinite levels", NewUpgradeCostCurve(), balance.Env{EnvLevels: math.Inf(1), EnvRefIncome: 5}},
		{"huge levels", NewUpgradeCostCurve(), balance.Env{EnvLevels: 1e10, EnvRefIncome: 5}},
		{"huge horizon", NewProductionSpend(), balance.Env{EnvHorizon: 1e12}},
		{"infinite horizon", NewProductionSpend(), balance.Env{EnvHorizon: math.Inf(1)}},
		{"tiny tick", NewProductionSpend(), balance.Env{EnvTick: 1e-9}},
		{"huge matches", NewMatchup(), balance.Env{EnvMatches: 1e12}},
		{"infinite matches", NewMatchup(), balance.Env{EnvMatches: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := balance.Simulate(tt.sys, tt.sys.Spec().Defaults(), tt.env, 0)
			if err == nil {
				t.Fatalf("expected an error for env %v", tt.env)
			}
			if errors.Is(err, balance.ErrDegenerateModel) {
				t.Fatalf("oversized env should not be reported as degenerate: %v", err)
			}
		})
	}
}

func TestSystemsAcceptLoopCountsAtTheLimit(t *testing.T) {
	sys := NewUpgradeCostCurve()
	if _, err := balance.Simulate(sys, sys.Spec().Defaults(), balance.Env{EnvLevels: MaxLevels, EnvRefIncome: 5}, 0); err != nil {
		t.Fatalf("Simulate at MaxLevels failed: %v", err)
	}
}

func TestEnvCount(t *testing.T) {
	tests := []struct {
		v       float64
		want    int
		wantErr bool
	}{
		{v: 10, want: 10},
		{v: 9.2, want: 10},
		{v: 0, want: 0},
		{v: 100, want: 100},
		{v: 101, wantErr: true},
		{v: math.NaN(), wantErr: true},
		{v: math.Inf(-1), wantErr: true},
	}

	for _, tt := range tests {
		got, err := envCount("n", tt.v, 100)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("envCount(%g): expected error, got %d", tt.v, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("envCount(%g) failed: %v", tt.v, err)
		}
		if got != tt.want {
			t.Fatalf("envCount(%g): expected %d, got %d", tt.v, tt.want, got)
		}
	}
}
