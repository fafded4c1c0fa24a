package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseScenarioYAML parses a Scenario from YAML bytes and validates it.
// This is used for APIs where the scenario is provided as payload (not via filesystem).
func ParseScenarioYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario yaml: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ParseScenarioYAMLString parses a Scenario from a YAML string and validates it.
func ParseScenarioYAMLString(yamlText string) (*Scenario, error) {
	return ParseScenarioYAML([]byte(yamlText))
}

// MarshalScenarioYAML renders a Scenario back to YAML.
func MarshalScenarioYAML(s *Scenario) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scenario yaml: %w", err)
	}
	return data, nil
}
