package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// LoadScenario loads and parses a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	scenario, err := ParseScenarioYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	return scenario, nil
}

var validLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateScenario checks a scenario before anything is built from it.
func ValidateScenario(s *Scenario) error {
	if !validLogLevels[s.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", s.LogLevel)
	}

	validCompleteness := map[string]bool{
		"":               true,
		"ignore_unbound": true,
		"require_all":    true,
	}
	if !validCompleteness[s.Completeness] {
		return fmt.Errorf("invalid completeness: %s (must be ignore_unbound or require_all)", s.Completeness)
	}

	validPolicies := map[string]bool{
		"":         true,
		"continue": true,
		"stop":     true,
	}
	if !validPolicies[s.FailurePolicy] {
		return fmt.Errorf("invalid failure_policy: %s (must be continue or stop)", s.FailurePolicy)
	}

	if s.Passes < 0 {
		return fmt.Errorf("passes cannot be negative, got %d", s.Passes)
	}
	if s.Budget.MaxIterations < 0 {
		return fmt.Errorf("budget max_iterations cannot be negative, got %d", s.Budget.MaxIterations)
	}
	if s.Budget.StagnationWindow < 0 {
		return fmt.Errorf("budget stagnation_window cannot be negative, got %d", s.Budget.StagnationWindow)
	}

	for _, name := range sortedKeys(s.Signals) {
		if !utils.IsFinite(s.Signals[name]) {
			return fmt.Errorf("signal %s must be finite", name)
		}
	}

	if s.Draft != nil {
		if err := validateDraft(s.Draft); err != nil {
			return fmt.Errorf("draft validation failed: %w", err)
		}
		if !s.Preset() {
			return fmt.Errorf("draft requires a preset genre")
		}
	}

	if !s.Preset() && len(s.Stages) == 0 {
		return fmt.Errorf("either genre or at least one stage must be defined")
	}

	stageNames := make(map[string]bool)
	for _, st := range s.Stages {
		if st.Name == "" {
			return fmt.Errorf("stage name cannot be empty")
		}
		if stageNames[st.Name] {
			return fmt.Errorf("duplicate stage name: %s", st.Name)
		}
		if err := validateStage(s, &st, stageNames); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
		stageNames[st.Name] = true
	}

	return nil
}

func validateDraft(d *Draft) error {
	if d.Rounds < 0 {
		return fmt.Errorf("rounds cannot be negative, got %d", d.Rounds)
	}
	if d.Options < 0 {
		return fmt.Errorf("options cannot be negative, got %d", d.Options)
	}
	if d.Rerolls < 0 {
		return fmt.Errorf("rerolls cannot be negative, got %d", d.Rerolls)
	}
	return nil
}

// validateStage checks one stage. earlier holds the names of the stages
// before it, which are the only stages whose signals it may read.
func validateStage(s *Scenario, st *Stage, earlier map[string]bool) error {
	if s.Preset() {
		if len(st.EnvFrom) > 0 || len(st.TargetsFrom) > 0 {
			return fmt.Errorf("env_from and targets_from are only allowed on custom stages")
		}
	} else {
		if st.System == "" {
			return fmt.Errorf("system cannot be empty")
		}
		if len(st.Targets) == 0 && len(st.TargetsFrom) == 0 {
			return fmt.Errorf("at least one target must be defined")
		}
	}

	for _, name := range sortedKeys(st.Params) {
		if !utils.IsFinite(st.Params[name]) {
			return fmt.Errorf("param %s must be finite, got %g", name, st.Params[name])
		}
	}
	for _, name := range sortedKeys(st.Env) {
		if !utils.IsFinite(st.Env[name]) {
			return fmt.Errorf("env %s must be finite, got %g", name, st.Env[name])
		}
	}

	for _, kpi := range sortedKeys(st.Targets) {
		if err := validateBand(st.Targets[kpi]); err != nil {
			return fmt.Errorf("target %s: %w", kpi, err)
		}
		if _, dup := st.TargetsFrom[kpi]; dup {
			return fmt.Errorf("target %s is defined both statically and from a signal", kpi)
		}
	}

	for _, key := range sortedKeys(st.EnvFrom) {
		if err := checkSignal(s, st.Name, st.EnvFrom[key], earlier); err != nil {
			return fmt.Errorf("env_from %s: %w", key, err)
		}
	}
	for _, kpi := range sortedKeys(st.TargetsFrom) {
		sb := st.TargetsFrom[kpi]
		if err := checkSignal(s, st.Name, sb.Signal, earlier); err != nil {
			return fmt.Errorf("targets_from %s: %w", kpi, err)
		}
		if !utils.IsFinite(sb.MinScale) || !utils.IsFinite(sb.MaxScale) {
			return fmt.Errorf("targets_from %s: scales must be finite", kpi)
		}
		if sb.MinScale > sb.MaxScale {
			return fmt.Errorf("targets_from %s: min_scale %g exceeds max_scale %g", kpi, sb.MinScale, sb.MaxScale)
		}
	}

	return nil
}

func validateBand(b Band) error {
	hasRange := b.Min != nil || b.Max != nil
	if b.Target != nil && hasRange {
		return fmt.Errorf("use either target/tolerance or min/max, not both")
	}
	if b.Target == nil && !hasRange {
		return fmt.Errorf("band needs a target or a min/max")
	}
	if b.Tolerance != nil && b.Target == nil {
		return fmt.Errorf("tolerance requires a target")
	}
	for _, v := range []*float64{b.Min, b.Max, b.Target, b.Tolerance} {
		if v != nil && !utils.IsFinite(*v) {
			return fmt.Errorf("band values must be finite, got %g", *v)
		}
	}
	lo, hi := b.Bounds()
	if lo > hi {
		return fmt.Errorf("min %g exceeds max %g", lo, hi)
	}
	return nil
}

// checkSignal rejects references that cannot be satisfied when the stage
// runs: a signal is either a scenario default or published by an earlier
// stage as <stage>.<kpi>. This keeps the signal graph acyclic.
func checkSignal(s *Scenario, stage, signal string, earlier map[string]bool) error {
	if signal == "" {
		return fmt.Errorf("signal name cannot be empty")
	}
	if _, ok := s.Signals[signal]; ok {
		return nil
	}
	producer, _, ok := strings.Cut(signal, ".")
	if !ok {
		return fmt.Errorf("unknown signal %s", signal)
	}
	if producer == stage {
		return fmt.Errorf("signal %s is published by the stage itself", signal)
	}
	if !earlier[producer] {
		return fmt.Errorf("signal %s is not published by an earlier stage", signal)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
