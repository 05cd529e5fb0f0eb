package config

import (
	"strings"
	"testing"
)

func TestParseExperimentYAMLAppliesDefaults(t *testing.T) {
	exp, err := ParseExperimentYAMLString(`
search_spaces: [2]
generations: 5
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exp.SearchSpaces) != 1 || exp.SearchSpaces[0] != 2 {
		t.Fatalf("expected search_spaces [2], got %v", exp.SearchSpaces)
	}
	if exp.Generations != 5 {
		t.Fatalf("expected 5 generations, got %d", exp.Generations)
	}
	if exp.PopSize != 20 || exp.Strategy != "rand1_bin" || exp.MaxBudget != 108 {
		t.Fatalf("expected defaults to be kept, got %+v", exp)
	}
}

func TestParseExperimentYAMLConvergence(t *testing.T) {
	exp, err := ParseExperimentYAMLString(`
benchmark: synthetic
convergence:
  strategy: plateau
  plateau_generations: 7
  score_tolerance: 0.0001
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Convergence == nil || exp.Convergence.Strategy != "plateau" || exp.Convergence.PlateauGenerations != 7 {
		t.Fatalf("unexpected convergence %+v", exp.Convergence)
	}
}

func TestParseExperimentYAMLInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "search_spaces: [1", "failed to parse"},
		{"unknown space", "search_spaces: [4]", "invalid search space"},
		{"duplicate space", "search_spaces: [1, 1]", "duplicate search space"},
		{"empty spaces", "search_spaces: []", "at least one search space"},
		{"negative runs", "runs: -1", "runs cannot be negative"},
		{"zero generations", "generations: 0", "generations must be positive"},
		{"small population", "pop_size: 3", "pop_size must be at least 4"},
		{"unknown strategy", "strategy: best3_bin", "invalid strategy"},
		{"mutation out of range", "mutation_factor: 2.5", "mutation_factor"},
		{"crossover out of range", "crossover_prob: 1.5", "crossover_prob"},
		{"unknown de type", "de_type: fancy", "invalid de_type"},
		{"unknown fix type", "fix_type: wrap", "invalid fix_type"},
		{"unknown benchmark", "benchmark: live", "invalid benchmark"},
		{"table without data", "data_dir: \"\"", "data_dir is required"},
		{"zero budget", "max_budget: 0", "max_budget must be positive"},
		{"bad log level", "log_level: trace", "invalid log_level"},
		{"bad convergence", "convergence: {strategy: sometimes}", "invalid convergence strategy"},
		{"negative window", "convergence: {strategy: plateau, plateau_generations: -1}", "cannot be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExperimentYAMLString(tt.yaml)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStrategyChoices(t *testing.T) {
	if len(StrategyChoices) != 14 {
		t.Fatalf("expected 14 strategies, got %d", len(StrategyChoices))
	}
	for _, s := range StrategyChoices {
		if !IsStrategy(s) {
			t.Fatalf("expected %s to be a strategy", s)
		}
	}
	if IsStrategy("") || IsStrategy("rand3_bin") {
		t.Fatal("unexpected strategy accepted")
	}
}
