package improvement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/MaxHalford/eaopt"

	"github.com/GoSim-25-26J-441/denas/pkg/config"
	"github.com/GoSim-25-26J-441/denas/pkg/logger"
	"github.com/GoSim-25-26J-441/denas/pkg/utils"
)

// Crossover and mutation used by the "default" DE variant
const (
	DefaultCrossoverProb  = 0.7
	DefaultMutationFactor = 0.75
)

// ImplementedStrategy is the mutation/crossover scheme the DE backend runs
const ImplementedStrategy = "rand1_bin"

// Params configures one differential evolution run
type Params struct {
	PopSize        int
	Generations    int
	MutationFactor float64
	CrossoverProb  float64
	Strategy       string
	Variant        string // "default" or "custom"
	Seed           int64
	Parallel       bool
	Verbose        bool
	Convergence    ConvergenceStrategy
	// Penalty is returned for evaluations skipped once ctx is cancelled;
	// Optimize then fails with the context error.
	Penalty float64
	// RNG drives the optimizer. When nil a source seeded with Seed is used.
	RNG *utils.RandSource
}

// Optimizer runs differential evolution over the unit hypercube
type Optimizer struct {
	params   Params
	progress func(generation int, best float64)

	generation atomic.Int64
	mu         sync.RWMutex
	bestScore  float64
	history    []OptimizationStep
}

// OptimizationStep is the state of a run after one generation
type OptimizationStep struct {
	Generation int
	Score      float64 // best score so far
	MeanScore  float64 // mean fitness of the current population
}

// OptimizationResult contains the final optimization result
type OptimizationResult struct {
	BestVector        []float64
	BestScore         float64
	Generations       int
	History           []OptimizationStep
	Converged         bool
	ConvergenceReason string
	Strategy          string // scheme that actually ran
}

// InvalidParamsError indicates optimizer parameters that cannot be run
type InvalidParamsError struct {
	Field  string
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid optimizer parameter %s: %s", e.Field, e.Reason)
}

// NewOptimizer validates params and creates an optimizer.
// The "default" variant replaces the mutation factor and crossover probability
// with DefaultMutationFactor and DefaultCrossoverProb.
func NewOptimizer(params Params) (*Optimizer, error) {
	if params.Variant == "" {
		params.Variant = config.DETypeDefault
	}
	if params.Strategy == "" {
		params.Strategy = ImplementedStrategy
	}
	switch params.Variant {
	case config.DETypeDefault:
		params.MutationFactor = DefaultMutationFactor
		params.CrossoverProb = DefaultCrossoverProb
	case config.DETypeCustom:
	default:
		return nil, &InvalidParamsError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", params.Variant)}
	}
	if params.PopSize < 4 {
		return nil, &InvalidParamsError{Field: "pop_size", Reason: "must be at least 4"}
	}
	if params.Generations < 1 {
		return nil, &InvalidParamsError{Field: "generations", Reason: "must be at least 1"}
	}
	if params.CrossoverProb < 0 || params.CrossoverProb > 1 {
		return nil, &InvalidParamsError{Field: "crossover_prob", Reason: "must be in [0, 1]"}
	}
	if params.MutationFactor < 0 || params.MutationFactor > 2 {
		return nil, &InvalidParamsError{Field: "mutation_factor", Reason: "must be in [0, 2]"}
	}
	if !config.IsStrategy(params.Strategy) {
		return nil, &InvalidParamsError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", params.Strategy)}
	}
	if params.Strategy != ImplementedStrategy {
		logger.Warn("strategy not implemented by the DE backend, running rand1_bin",
			"requested", params.Strategy)
	}
	return &Optimizer{
		params:    params,
		bestScore: math.Inf(1),
	}, nil
}

// WithProgressReporter sets a callback invoked after every generation
func (o *Optimizer) WithProgressReporter(fn func(generation int, best float64)) *Optimizer {
	o.progress = fn
	return o
}

// Params returns the effective parameters
func (o *Optimizer) Params() Params {
	return o.params
}

// Generation returns the generation currently being evaluated.
// The initial population is generation 0.
func (o *Optimizer) Generation() int {
	return int(o.generation.Load())
}

// GetBestScore returns the best score found so far
func (o *Optimizer) GetBestScore() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bestScore
}

// Optimize minimizes evaluate over [0,1]^dims. Candidates produced by DE
// mutation may fall outside the unit cube; evaluate is expected to repair them.
// Cancelling ctx stops the run after the current generation.
func (o *Optimizer) Optimize(ctx context.Context, dims int, evaluate func(x []float64) float64) (*OptimizationResult, error) {
	if dims < 1 {
		return nil, &InvalidParamsError{Field: "dims", Reason: "must be at least 1"}
	}
	if evaluate == nil {
		return nil, errors.New("evaluation function is required")
	}

	src := o.params.RNG
	if src == nil {
		src = utils.NewRandSource(o.params.Seed)
	}
	de, err := eaopt.NewDiffEvo(
		uint(o.params.PopSize),
		uint(o.params.Generations),
		0, 1,
		o.params.CrossoverProb,
		o.params.MutationFactor,
		o.params.Parallel,
		src.Rand(),
	)
	if err != nil {
		return nil, fmt.Errorf("create differential evolution: %w", err)
	}

	o.mu.Lock()
	o.bestScore = math.Inf(1)
	o.history = make([]OptimizationStep, 0, o.params.Generations+1)
	o.mu.Unlock()
	o.generation.Store(0)

	var converged bool
	var reason string

	if o.params.Verbose {
		de.GA.Logger = logger.StdLogger(slog.LevelInfo)
	}
	de.GA.Callback = func(ga *eaopt.GA) {
		step := OptimizationStep{
			Generation: int(ga.Generations),
			Score:      ga.HallOfFame[0].Fitness,
			MeanScore:  ga.Populations[0].Individuals.FitAvg(),
		}
		o.mu.Lock()
		o.bestScore = step.Score
		o.history = append(o.history, step)
		o.mu.Unlock()
		o.generation.Store(int64(step.Generation) + 1)
		if o.progress != nil {
			o.progress(step.Generation, step.Score)
		}
	}
	de.GA.EarlyStop = func(ga *eaopt.GA) bool {
		if ctx.Err() != nil {
			return true
		}
		if o.params.Convergence == nil {
			return false
		}
		o.mu.RLock()
		ok, why := o.params.Convergence.CheckConvergence(o.history)
		o.mu.RUnlock()
		if ok {
			converged, reason = true, why
		}
		return ok
	}

	wrapped := func(x []float64) float64 {
		if ctx.Err() != nil {
			return o.params.Penalty
		}
		return evaluate(x)
	}

	best, score, err := de.Minimize(wrapped, uint(dims))
	if err != nil {
		return nil, fmt.Errorf("differential evolution: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	history := make([]OptimizationStep, len(o.history))
	copy(history, o.history)
	if !converged {
		reason = "generation budget reached"
	}
	generations := 0
	if n := len(history); n > 0 {
		generations = history[n-1].Generation
	}
	return &OptimizationResult{
		BestVector:        best,
		BestScore:         score,
		Generations:       generations,
		History:           history,
		Converged:         converged,
		ConvergenceReason: reason,
		Strategy:          ImplementedStrategy,
	}, nil
}
