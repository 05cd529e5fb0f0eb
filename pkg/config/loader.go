package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadExperiment loads and parses an experiment file
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file %s: %w", path, err)
	}
	exp, err := ParseExperimentYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse experiment file %s: %w", path, err)
	}
	return exp, nil
}

// Validate performs validation on the experiment configuration
func Validate(e *Experiment) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(e.LogLevel)] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", e.LogLevel)
	}

	if len(e.SearchSpaces) == 0 {
		return fmt.Errorf("at least one search space must be selected")
	}
	seen := make(map[int]bool)
	for _, s := range e.SearchSpaces {
		if s < 1 || s > 3 {
			return fmt.Errorf("invalid search space %d (must be 1, 2, or 3)", s)
		}
		if seen[s] {
			return fmt.Errorf("duplicate search space: %d", s)
		}
		seen[s] = true
	}

	if e.Runs < 0 {
		return fmt.Errorf("runs cannot be negative, got %d", e.Runs)
	}
	if e.RunID < 0 || e.RunStart < 0 {
		return fmt.Errorf("run_id and run_start cannot be negative")
	}
	if e.Generations <= 0 {
		return fmt.Errorf("generations must be positive, got %d", e.Generations)
	}
	if e.PopSize < 4 {
		return fmt.Errorf("pop_size must be at least 4, got %d", e.PopSize)
	}
	if !IsStrategy(e.Strategy) {
		return fmt.Errorf("invalid strategy: %s", e.Strategy)
	}
	if e.MutationFactor < 0 || e.MutationFactor > 2 {
		return fmt.Errorf("mutation_factor must be between 0 and 2, got %f", e.MutationFactor)
	}
	if e.CrossoverProb < 0 || e.CrossoverProb > 1 {
		return fmt.Errorf("crossover_prob must be between 0 and 1, got %f", e.CrossoverProb)
	}
	if e.DEType != DETypeDefault && e.DEType != DETypeCustom {
		return fmt.Errorf("invalid de_type: %s (must be default or custom)", e.DEType)
	}
	if ft := strings.ToLower(strings.TrimSpace(e.FixType)); ft != "" && ft != "random" && ft != "clip" {
		return fmt.Errorf("invalid fix_type: %s (must be random or clip)", e.FixType)
	}

	switch e.Benchmark {
	case BenchmarkTable:
		if e.DataDir == "" {
			return fmt.Errorf("data_dir is required for the table benchmark")
		}
	case BenchmarkSynthetic:
	default:
		return fmt.Errorf("invalid benchmark: %s (must be table or synthetic)", e.Benchmark)
	}
	if e.MaxBudget <= 0 {
		return fmt.Errorf("max_budget must be positive, got %d", e.MaxBudget)
	}
	if e.OutputPath == "" {
		return fmt.Errorf("output_path cannot be empty")
	}

	if e.Convergence != nil {
		if err := validateConvergence(e.Convergence); err != nil {
			return fmt.Errorf("convergence validation failed: %w", err)
		}
	}

	return nil
}

// validateConvergence validates the early-stopping configuration
func validateConvergence(c *Convergence) error {
	validStrategies := map[string]bool{
		"":               true,
		"none":           true,
		"no_improvement": true,
		"plateau":        true,
		"threshold":      true,
		"variance":       true,
		"combined":       true,
	}
	if !validStrategies[c.Strategy] {
		return fmt.Errorf("invalid convergence strategy: %s", c.Strategy)
	}
	if c.NoImprovementGenerations < 0 || c.PlateauGenerations < 0 || c.MinGenerations < 0 {
		return fmt.Errorf("generation windows cannot be negative")
	}
	if c.ImprovementThreshold < 0 || c.ScoreTolerance < 0 {
		return fmt.Errorf("thresholds cannot be negative")
	}
	return nil
}
