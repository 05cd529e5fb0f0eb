package improvement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
	"github.com/GoSim-25-26J-441/denas/internal/history"
	"github.com/GoSim-25-26J-441/denas/internal/metrics"
	"github.com/GoSim-25-26J-441/denas/internal/nasbench"
	"github.com/GoSim-25-26J-441/denas/internal/space"
	"github.com/GoSim-25-26J-441/denas/pkg/config"
	"github.com/GoSim-25-26J-441/denas/pkg/logger"
	"github.com/GoSim-25-26J-441/denas/pkg/utils"
)

// PenaltyFitness is the penalty of the error objectives: a 100% error.
// Candidates that cannot be scored (invalid cells, benchmark misses, failed
// queries) receive their objective's Penalty.
const PenaltyFitness = 1.0

// Monitor receives sweep progress
type Monitor interface {
	Register(spaces ...int)
	RunStarted(space, runIndex int, runID string)
	GenerationDone(space, generation int, best float64)
	RunFinished(space int)
	MarkDone(space int)
	Finish()
}

// RegretReference is implemented by benchmarks that know the best attainable
// errors, so runs can report regret
type RegretReference interface {
	Best(ctx context.Context, budget int) (validMin, testMin float64, err error)
}

// Orchestrator runs an experiment: every configured search space, every run index
type Orchestrator struct {
	bench        benchmark.Benchmark
	objective    ObjectiveFunction
	sinks        []history.Sink
	monitor      Monitor
	metrics      *metrics.Collector
	recorder     *history.Recorder
	experimentID string
}

// RunSummary describes one finished run
type RunSummary struct {
	RunID             string
	RunIndex          int
	SearchSpace       int
	Seed              int64
	BestScore         float64
	BestVector        []float64
	BestConfig        space.Configuration
	BestFingerprint   string
	BestResult        benchmark.Result
	ValidRegret       float64 // NaN when the benchmark has no reference
	TestRegret        float64
	Evaluations       int
	Candidates        int          // distinct scored architectures
	ParetoFront       []*Candidate // objective vs training time
	Failures          int
	Repairs           int
	Generations       int
	Converged         bool
	ConvergenceReason string
	Strategy          string
	Duration          time.Duration
}

// ExperimentResult contains the results of an experiment
type ExperimentResult struct {
	ExperimentID string
	Runs         []RunSummary
	BestScore    float64
	BestRunID    string
	Duration     time.Duration
}

// NewOrchestrator creates an orchestrator scoring cells from bench with objective
func NewOrchestrator(bench benchmark.Benchmark, objective ObjectiveFunction, sinks ...history.Sink) *Orchestrator {
	return &Orchestrator{
		bench:        bench,
		objective:    objective,
		sinks:        sinks,
		recorder:     history.NewRecorder(),
		experimentID: utils.GenerateExperimentID(),
	}
}

// WithMonitor sets the progress monitor
func (o *Orchestrator) WithMonitor(m Monitor) *Orchestrator {
	o.monitor = m
	return o
}

// WithMetrics records per-evaluation metrics into c
func (o *Orchestrator) WithMetrics(c *metrics.Collector) *Orchestrator {
	o.metrics = c
	return o
}

// WithExperimentID overrides the generated experiment id
func (o *Orchestrator) WithExperimentID(id string) *Orchestrator {
	o.experimentID = id
	return o
}

// ExperimentID returns the id written to every run header
func (o *Orchestrator) ExperimentID() string {
	return o.experimentID
}

// RunExperiment executes every run of exp sequentially. A failing run aborts
// the experiment; results of the runs completed so far are returned with the error.
func (o *Orchestrator) RunExperiment(ctx context.Context, exp *config.Experiment) (*ExperimentResult, error) {
	if exp == nil {
		return nil, fmt.Errorf("experiment configuration is required")
	}
	if o.bench == nil || o.objective == nil {
		return nil, fmt.Errorf("benchmark and objective are required")
	}
	fix, err := space.ParseFixType(exp.FixType)
	if err != nil {
		return nil, err
	}
	convergence, err := buildConvergence(exp.Convergence)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &ExperimentResult{ExperimentID: o.experimentID, BestScore: math.Inf(1)}
	if o.monitor != nil {
		o.monitor.Register(exp.SearchSpaces...)
		defer o.monitor.Finish()
	}

	for _, id := range exp.SearchSpaces {
		ss, err := nasbench.Space(id)
		if err != nil {
			return result, err
		}
		for _, runIndex := range exp.RunIndices() {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			summary, err := o.runOnce(ctx, exp, ss, runIndex, fix, convergence)
			if err != nil {
				return result, fmt.Errorf("search space %d run %d: %w", id, runIndex, err)
			}
			result.Runs = append(result.Runs, summary)
			if summary.BestScore < result.BestScore {
				result.BestScore = summary.BestScore
				result.BestRunID = summary.RunID
			}
		}
		if o.monitor != nil {
			o.monitor.MarkDone(id)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func buildConvergence(c *config.Convergence) (ConvergenceStrategy, error) {
	if c == nil {
		return nil, nil
	}
	cfg := DefaultConvergenceConfig()
	if c.NoImprovementGenerations > 0 {
		cfg.NoImprovementGenerations = c.NoImprovementGenerations
	}
	if c.PlateauGenerations > 0 {
		cfg.PlateauGenerations = c.PlateauGenerations
	}
	if c.MinGenerations > 0 {
		cfg.MinGenerations = c.MinGenerations
	}
	if c.ImprovementThreshold > 0 {
		cfg.ImprovementThreshold = c.ImprovementThreshold
	}
	if c.ScoreTolerance > 0 {
		cfg.ScoreTolerance = c.ScoreTolerance
	}
	return NewConvergenceStrategy(c.Strategy, cfg)
}

// runOnce performs one seeded DE run over ss and persists its history
func (o *Orchestrator) runOnce(ctx context.Context, exp *config.Experiment, ss *nasbench.SearchSpace, runIndex int, fix space.FixType, convergence ConvergenceStrategy) (RunSummary, error) {
	seed := exp.SeedFor(runIndex)
	runID := utils.GenerateRunID()
	src := utils.NewRandSource(seed)
	log := logger.With("run_id", runID, "search_space", ss.ID, "run_index", runIndex, "seed", seed)

	opt, err := NewOptimizer(Params{
		PopSize:        exp.PopSize,
		Generations:    exp.Generations,
		MutationFactor: exp.MutationFactor,
		CrossoverProb:  exp.CrossoverProb,
		Strategy:       exp.Strategy,
		Variant:        exp.DEType,
		Seed:           seed,
		Parallel:       exp.Parallel,
		Verbose:        exp.Verbose,
		Convergence:    convergence,
		Penalty:        o.objective.Penalty(),
		RNG:            src,
	})
	if err != nil {
		return RunSummary{}, err
	}
	opt.WithProgressReporter(func(generation int, best float64) {
		log.Debug("generation complete", "generation", generation, "best", best)
		if o.monitor != nil {
			o.monitor.GenerationDone(ss.ID, generation, best)
		}
	})

	info := history.RunInfo{
		ExperimentID: o.experimentID,
		RunID:        runID,
		RunIndex:     runIndex,
		SearchSpace:  ss.ID,
		Seed:         seed,
		Strategy:     exp.Strategy,
		Benchmark:    o.bench.Name(),
		Objective:    o.objective.Name(),
		Generations:  exp.Generations,
		PopSize:      exp.PopSize,
		StartedAt:    time.Now().UTC(),
	}
	if o.monitor != nil {
		o.monitor.RunStarted(ss.ID, runIndex, runID)
	}
	log.Info("run started", "generations", exp.Generations, "pop_size", exp.PopSize, "strategy", exp.Strategy)

	o.recorder.Reset()
	defer o.recorder.Reset()

	eval := &evaluator{
		ctx:       ctx,
		ss:        ss,
		bench:     o.bench,
		objective: o.objective,
		recorder:  o.recorder,
		metrics:   o.metrics,
		fix:       fix,
		rng:       src,
		budget:    exp.MaxBudget,
		opt:       opt,
	}
	optResult, err := opt.Optimize(ctx, ss.Dimensions(), eval.evaluate)
	if err != nil {
		return RunSummary{}, fmt.Errorf("optimization failed: %w", err)
	}

	records := o.recorder.Records()
	for _, sink := range o.sinks {
		if err := sink.Write(ctx, info, records); err != nil {
			return RunSummary{}, fmt.Errorf("write history: %w", err)
		}
	}

	summary := o.summarize(ctx, info, optResult, records)
	summary.Duration = time.Since(info.StartedAt)
	if o.monitor != nil {
		o.monitor.RunFinished(ss.ID)
	}
	log.Info("run finished",
		"best_score", summary.BestScore,
		"evaluations", summary.Evaluations,
		"failures", summary.Failures,
		"generations", summary.Generations,
		"converged", summary.Converged,
		"duration", summary.Duration)
	return summary, nil
}

func (o *Orchestrator) summarize(ctx context.Context, info history.RunInfo, res *OptimizationResult, records []history.Record) RunSummary {
	s := RunSummary{
		RunID:             info.RunID,
		RunIndex:          info.RunIndex,
		SearchSpace:       info.SearchSpace,
		Seed:              info.Seed,
		BestScore:         res.BestScore,
		BestVector:        res.BestVector,
		ValidRegret:       math.NaN(),
		TestRegret:        math.NaN(),
		Evaluations:       len(records),
		Generations:       res.Generations,
		Converged:         res.Converged,
		ConvergenceReason: res.ConvergenceReason,
		Strategy:          res.Strategy,
	}
	for _, rec := range records {
		if rec.Err != "" {
			s.Failures++
		}
		if rec.Repaired {
			s.Repairs++
		}
	}
	candidates := CandidatesFromRecords(records)
	s.Candidates = len(candidates)
	if best, err := SelectBestCandidate(candidates, o.objective); err == nil {
		s.BestConfig = best.Config
		s.BestFingerprint = best.Fingerprint
		s.BestResult = best.Result
	}
	s.ParetoFront = NewParetoOptimalStrategy([]ObjectiveFunction{&TrainingTimeObjective{}}).Front(candidates)

	if ref, ok := o.bench.(RegretReference); ok && s.BestFingerprint != "" {
		budget := s.BestResult.Budget
		validMin, testMin, err := ref.Best(ctx, budget)
		switch {
		case err == nil:
			s.ValidRegret = s.BestResult.ValidError - validMin
			s.TestRegret = s.BestResult.TestError - testMin
		case errors.Is(err, benchmark.ErrNotFound):
		default:
			logger.Warn("regret reference unavailable", "error", err)
		}
	}
	return s
}

// evaluator is the fitness function handed to the optimizer:
// repair, decode, build the cell, query the benchmark, score, record.
type evaluator struct {
	ctx       context.Context
	ss        *nasbench.SearchSpace
	bench     benchmark.Benchmark
	objective ObjectiveFunction
	recorder  *history.Recorder
	metrics   *metrics.Collector
	fix       space.FixType
	rng       space.Float64Source
	budget    int
	opt       *Optimizer
}

func (e *evaluator) evaluate(x []float64) float64 {
	start := time.Now()
	rec := history.Record{
		Generation: e.opt.Generation(),
		Vector:     append([]float64(nil), x...),
		Fitness:    e.objective.Penalty(),
	}
	repaired := x
	if len(space.Violations(x)) > 0 {
		repaired = space.Repair(x, e.fix, e.rng)
		rec.Repaired = true
	}

	score, err := e.score(repaired, &rec)
	if err != nil {
		rec.Err = err.Error()
		logger.Warn("evaluation failed, assigning penalty fitness",
			"search_space", e.ss.ID, "generation", rec.Generation, "error", err)
	} else {
		rec.Fitness = score
	}
	e.recorder.Add(rec)
	metrics.RecordEvaluation(e.metrics, e.ss.ID, time.Since(start), rec.Fitness, rec.Result.TrainingTime, rec.Repaired, rec.Err != "")
	return rec.Fitness
}

func (e *evaluator) score(vector []float64, rec *history.Record) (float64, error) {
	cfg, err := space.Decode(e.ss.Schema(), vector)
	if err != nil {
		return 0, err
	}
	rec.Config = cfg

	cell, err := e.ss.Cell(cfg)
	if err != nil {
		return 0, err
	}
	fp, err := cell.Fingerprint()
	if err != nil {
		return 0, err
	}
	rec.Fingerprint = fp
	rec.Valid = true

	res, err := e.bench.Query(e.ctx, cell, e.budget)
	if err != nil {
		return 0, err
	}
	rec.Result = res

	score, err := e.objective.Evaluate(&res)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, &InvalidResultError{Reason: "objective produced a non-finite score"}
	}
	return score, nil
}
