package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseExperimentYAML parses an Experiment from YAML bytes on top of
// DefaultExperiment and validates it.
func ParseExperimentYAML(data []byte) (*Experiment, error) {
	exp := DefaultExperiment()
	if err := yaml.Unmarshal(data, exp); err != nil {
		return nil, fmt.Errorf("failed to parse experiment yaml: %w", err)
	}

	if err := Validate(exp); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}

	return exp, nil
}

// ParseExperimentYAMLString parses an Experiment from a YAML string and validates it.
func ParseExperimentYAMLString(yamlText string) (*Experiment, error) {
	return ParseExperimentYAML([]byte(yamlText))
}
