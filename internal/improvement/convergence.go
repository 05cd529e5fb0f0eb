package improvement

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/denas/pkg/utils"
)

// ConvergenceStrategy decides when a run may stop before its generation budget
type ConvergenceStrategy interface {
	// CheckConvergence checks if optimization has converged based on history
	CheckConvergence(history []OptimizationStep) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection.
// Window sizes are counted in generations.
type ConvergenceConfig struct {
	// NoImprovementGenerations is the number of generations without improvement before stopping
	NoImprovementGenerations int
	// ImprovementThreshold is the minimum relative improvement to consider significant
	ImprovementThreshold float64
	// ScoreTolerance is the absolute tolerance for score changes to be considered equal
	ScoreTolerance float64
	// MinGenerations is the minimum number of generations before convergence can be detected
	MinGenerations int
	// PlateauGenerations is the number of generations with similar scores before stopping
	PlateauGenerations int
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		NoImprovementGenerations: 10,
		ImprovementThreshold:     0.001,
		ScoreTolerance:           1e-6,
		MinGenerations:           5,
		PlateauGenerations:       10,
	}
}

// ConvergenceStrategyNames lists the names accepted by NewConvergenceStrategy
func ConvergenceStrategyNames() []string {
	return []string{"none", "no_improvement", "plateau", "threshold", "variance", "combined"}
}

// NewConvergenceStrategy builds a strategy by name. "none" and "" return a
// nil strategy, which runs every generation.
func NewConvergenceStrategy(name string, config *ConvergenceConfig) (ConvergenceStrategy, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "no_improvement":
		return NewNoImprovementStrategy(config), nil
	case "plateau":
		return NewPlateauStrategy(config), nil
	case "threshold":
		return NewThresholdStrategy(config), nil
	case "variance":
		return NewVarianceStrategy(config), nil
	case "combined":
		return NewCombinedStrategy(config), nil
	default:
		return nil, &UnknownConvergenceStrategyError{Name: name}
	}
}

// UnknownConvergenceStrategyError indicates an unknown convergence strategy name
type UnknownConvergenceStrategyError struct {
	Name string
}

func (e *UnknownConvergenceStrategyError) Error() string {
	return "unknown convergence strategy: " + e.Name
}

// NoImprovementStrategy converges when the best score has not improved for N generations
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates a new no-improvement convergence strategy
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	if len(history) < s.config.MinGenerations || len(history) == 0 {
		return false, ""
	}

	// First generation holding the best score
	best := math.Inf(1)
	bestAt := -1
	for i, step := range history {
		if step.Score < best-s.config.ScoreTolerance {
			best = step.Score
			bestAt = i
		}
	}
	if bestAt < 0 {
		return false, ""
	}

	since := len(history) - 1 - bestAt
	if since >= s.config.NoImprovementGenerations {
		return true, fmt.Sprintf("no improvement for %d generations (best at generation %d)", since, history[bestAt].Generation)
	}
	return false, ""
}

// PlateauStrategy converges when the last N scores lie within ScoreTolerance
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates a new plateau convergence strategy
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	window := s.config.PlateauGenerations
	if len(history) < s.config.MinGenerations || window < 2 || len(history) < window {
		return false, ""
	}

	recent := history[len(history)-window:]
	lo, hi := recent[0].Score, recent[0].Score
	for _, step := range recent {
		lo = math.Min(lo, step.Score)
		hi = math.Max(hi, step.Score)
	}

	if spread := hi - lo; spread <= s.config.ScoreTolerance {
		return true, fmt.Sprintf("score plateaued for %d generations (range: %.6f)", window, spread)
	}
	return false, ""
}

// ThresholdStrategy converges when every recent relative improvement is below threshold
type ThresholdStrategy struct {
	config *ConvergenceConfig
}

// NewThresholdStrategy creates a new improvement threshold convergence strategy
func NewThresholdStrategy(config *ConvergenceConfig) *ThresholdStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &ThresholdStrategy{config: config}
}

func (s *ThresholdStrategy) Name() string {
	return "threshold"
}

func (s *ThresholdStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	window := s.config.NoImprovementGenerations
	if len(history) < s.config.MinGenerations+1 || window < 2 || len(history) < window {
		return false, ""
	}

	recent := history[len(history)-window:]
	maxImprovement := math.Inf(-1)
	for i := 1; i < len(recent); i++ {
		prev := recent[i-1].Score
		if prev == 0 {
			continue
		}
		rel := (prev - recent[i].Score) / math.Abs(prev)
		if rel > s.config.ImprovementThreshold {
			return false, ""
		}
		maxImprovement = math.Max(maxImprovement, rel)
	}
	if math.IsInf(maxImprovement, -1) {
		return false, ""
	}
	return true, fmt.Sprintf("improvements below threshold (max: %.4f%%, threshold: %.4f%%)", maxImprovement*100, s.config.ImprovementThreshold*100)
}

// VarianceStrategy converges when the relative standard deviation of the
// population mean score is low
type VarianceStrategy struct {
	config *ConvergenceConfig
}

// NewVarianceStrategy creates a new variance-based convergence strategy
func NewVarianceStrategy(config *ConvergenceConfig) *VarianceStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &VarianceStrategy{config: config}
}

func (s *VarianceStrategy) Name() string {
	return "variance"
}

func (s *VarianceStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	if len(history) < s.config.MinGenerations {
		return false, ""
	}
	window := min(s.config.PlateauGenerations, len(history))
	if window < 2 {
		return false, ""
	}

	scores := make([]float64, 0, window)
	for _, step := range history[len(history)-window:] {
		scores = append(scores, step.MeanScore)
	}
	mean := utils.Mean(scores)
	if mean <= 0 {
		return false, ""
	}
	if rel := utils.StdDev(scores) / mean; rel < s.config.ImprovementThreshold {
		return true, fmt.Sprintf("low population score variance (relative stddev: %.4f%%)", rel*100)
	}
	return false, ""
}

// CombinedStrategy converges as soon as any of its strategies does
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy combines no_improvement, plateau and threshold
func NewCombinedStrategy(config *ConvergenceConfig) *CombinedStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &CombinedStrategy{
		strategies: []ConvergenceStrategy{
			NewNoImprovementStrategy(config),
			NewPlateauStrategy(config),
			NewThresholdStrategy(config),
		},
	}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(history []OptimizationStep) (converged bool, reason string) {
	for _, strategy := range s.strategies {
		if ok, why := strategy.CheckConvergence(history); ok {
			return true, fmt.Sprintf("%s: %s", strategy.Name(), why)
		}
	}
	return false, ""
}

// AddStrategy adds a custom strategy to the combined strategy
func (s *CombinedStrategy) AddStrategy(strategy ConvergenceStrategy) {
	s.strategies = append(s.strategies, strategy)
}
