//go:build integration
// +build integration

package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/internal/scenario"
	"github.com/avila-gabriel/game-balance/pkg/config"
	"github.com/avila-gabriel/game-balance/pkg/logger"
)

func TestIntegration_ScenarioFilesSmoke(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "scenarios", "*.yaml"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("expected scenario files under scenarios/")
	}

	reg := registry.Default()
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := config.LoadScenario(path)
			if err != nil {
				t.Fatalf("LoadScenario(%s) failed: %v", path, err)
			}
			res, plan, err := scenario.Run(context.Background(), s, reg, logger.Discard())
			if err != nil {
				t.Fatalf("Run(%s) failed: %v", path, err)
			}
			if len(res.Stages) != len(plan.Stages) {
				t.Fatalf("expected %d stage results, got %d", len(plan.Stages), len(res.Stages))
			}
			for _, st := range res.Stages {
				if st.Outcome == nil && !st.Skipped && st.Err == nil {
					t.Fatalf("stage %s has neither outcome nor error", st.Name)
				}
			}
		})
	}
}

func TestIntegration_ScenarioDeterminism(t *testing.T) {
	path := filepath.Join("..", "..", "scenarios", "idle.yaml")
	reg := registry.Default()

	run := func() map[string]float64 {
		s, err := config.LoadScenario(path)
		if err != nil {
			t.Fatalf("LoadScenario failed: %v", err)
		}
		res, _, err := scenario.Run(context.Background(), s, reg, logger.Discard())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return res.Signals
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("signal sets differ: %v vs %v", a, b)
	}
	for k, v := range a {
		if b[k] != v {
			t.Fatalf("signal %s differs between runs: %v vs %v", k, v, b[k])
		}
	}
}
