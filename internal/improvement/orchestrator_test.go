package improvement

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
	"github.com/GoSim-25-26J-441/denas/internal/history"
	"github.com/GoSim-25-26J-441/denas/internal/metrics"
	"github.com/GoSim-25-26J-441/denas/internal/nasbench"
	"github.com/GoSim-25-26J-441/denas/pkg/config"
	"github.com/GoSim-25-26J-441/denas/pkg/utils"
)

type fakeMonitor struct {
	mu          sync.Mutex
	registered  []int
	started     int
	generations int
	finished    int
	done        []int
	finishes    int
}

func (m *fakeMonitor) Register(spaces ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, spaces...)
}

func (m *fakeMonitor) RunStarted(space, runIndex int, runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *fakeMonitor) GenerationDone(space, generation int, best float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations++
}

func (m *fakeMonitor) RunFinished(space int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
}

func (m *fakeMonitor) MarkDone(space int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = append(m.done, space)
}

func (m *fakeMonitor) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishes++
}

// referenceBenchmark wraps the synthetic surrogate with a fixed regret reference
type referenceBenchmark struct {
	*benchmark.Synthetic
}

func (r referenceBenchmark) Best(ctx context.Context, budget int) (float64, float64, error) {
	return 0.01, 0.02, nil
}

// sparseBenchmark misses roughly half of all cells and reports a fixed
// training time for the rest
type sparseBenchmark struct {
	*benchmark.Synthetic
}

func (b sparseBenchmark) Query(ctx context.Context, cell *nasbench.Cell, budget int) (benchmark.Result, error) {
	fp, err := cell.Fingerprint()
	if err != nil {
		return benchmark.Result{}, err
	}
	if fp[0] < '8' {
		return benchmark.Result{}, benchmark.ErrNotFound
	}
	res, err := b.Synthetic.Query(ctx, cell, budget)
	if err != nil {
		return benchmark.Result{}, err
	}
	res.TrainingTime = 500
	return res, nil
}

func smallExperiment() *config.Experiment {
	exp := config.DefaultExperiment()
	exp.SearchSpaces = []int{1}
	exp.Runs = 2
	exp.RunStart = 0
	exp.Generations = 3
	exp.PopSize = 6
	exp.Benchmark = config.BenchmarkSynthetic
	exp.Verbose = false
	return exp
}

func TestRunExperimentSynthetic(t *testing.T) {
	dir := t.TempDir()
	fileSink, err := history.NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	mon := &fakeMonitor{}
	orch := NewOrchestrator(benchmark.NewSynthetic(), &ValidErrorObjective{}, fileSink).
		WithMonitor(mon).
		WithExperimentID("exp-test")

	res, err := orch.RunExperiment(context.Background(), smallExperiment())
	if err != nil {
		t.Fatalf("RunExperiment: %v", err)
	}
	if res.ExperimentID != "exp-test" {
		t.Fatalf("expected experiment id exp-test, got %s", res.ExperimentID)
	}
	if len(res.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(res.Runs))
	}

	for i, run := range res.Runs {
		if run.RunIndex != i || run.Seed != int64(i) || run.SearchSpace != 1 {
			t.Fatalf("unexpected run identity %+v", run)
		}
		if run.Evaluations < 6 {
			t.Fatalf("expected at least the initial population to be evaluated, got %d", run.Evaluations)
		}
		if run.BestScore < 0 || run.BestScore > PenaltyFitness {
			t.Fatalf("best score out of range: %v", run.BestScore)
		}
		if !math.IsNaN(run.ValidRegret) {
			t.Fatalf("expected NaN regret for the synthetic benchmark, got %v", run.ValidRegret)
		}
		if len(run.ParetoFront) > run.Candidates {
			t.Fatalf("front larger than candidate set")
		}

		path := filepath.Join(dir, utils.HistoryFileName(i, 1, int64(i)))
		header, records, err := history.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", path, err)
		}
		if header["experiment_id"] != "exp-test" || header["benchmark"] != "synthetic" {
			t.Fatalf("unexpected header %v", header)
		}
		if len(records) != run.Evaluations {
			t.Fatalf("expected %d records, got %d", run.Evaluations, len(records))
		}
		prevGen := -1.0
		for _, rec := range records {
			fit := rec["fitness"].(float64)
			if fit < 0 || fit > PenaltyFitness {
				t.Fatalf("fitness out of range: %v", fit)
			}
			gen := rec["generation"].(float64)
			if gen < prevGen {
				t.Fatalf("generation went backwards: %v after %v", gen, prevGen)
			}
			prevGen = gen
			if len(rec["vector"].([]any)) != 9 {
				t.Fatalf("expected 9-dimensional vectors for space 1")
			}
		}
	}

	if res.BestRunID == "" || res.BestScore > res.Runs[0].BestScore || res.BestScore > res.Runs[1].BestScore {
		t.Fatalf("unexpected experiment best %s %v", res.BestRunID, res.BestScore)
	}

	if len(mon.registered) != 1 || mon.started != 2 || mon.finished != 2 || len(mon.done) != 1 || mon.finishes != 1 {
		t.Fatalf("unexpected monitor calls %+v", mon)
	}
	if mon.generations == 0 {
		t.Fatalf("expected generation progress to be reported")
	}
}

func TestRunExperimentIsReproducible(t *testing.T) {
	run := func() []float64 {
		sink, err := history.NewFileSink(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSink: %v", err)
		}
		exp := smallExperiment()
		exp.Runs = 0
		exp.RunID = 3
		res, err := NewOrchestrator(benchmark.NewSynthetic(), &ValidErrorObjective{}, sink).
			RunExperiment(context.Background(), exp)
		if err != nil {
			t.Fatalf("RunExperiment: %v", err)
		}
		_, records, err := history.ReadFile(filepath.Join(sink.Dir, "DE_3_ssp_1_seed_0.pb"))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		out := make([]float64, 0, len(records))
		for _, rec := range records {
			out = append(out, rec["fitness"].(float64))
		}
		if res.Runs[0].RunIndex != 3 || res.Runs[0].Seed != 0 {
			t.Fatalf("expected run 3 with seed 0, got run %d seed %d", res.Runs[0].RunIndex, res.Runs[0].Seed)
		}
		return out
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("expected identical history lengths, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("histories diverge at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestRunExperimentFixSeed(t *testing.T) {
	exp := smallExperiment()
	exp.FixSeed = true
	res, err := NewOrchestrator(benchmark.NewSynthetic(), &ValidErrorObjective{}).
		RunExperiment(context.Background(), exp)
	if err != nil {
		t.Fatalf("RunExperiment: %v", err)
	}
	for _, run := range res.Runs {
		if run.Seed != 0 {
			t.Fatalf("expected every run to use seed 0, got %d", run.Seed)
		}
	}
}

func TestRunExperimentEmptyTablePenalizesEverything(t *testing.T) {
	table, err := benchmark.OpenTable(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	defer table.Close()

	exp := smallExperiment()
	exp.Runs = 0
	exp.Benchmark = config.BenchmarkTable
	res, err := NewOrchestrator(table, &ValidErrorObjective{}).RunExperiment(context.Background(), exp)
	if err != nil {
		t.Fatalf("RunExperiment: %v", err)
	}
	run := res.Runs[0]
	if run.Failures != run.Evaluations {
		t.Fatalf("expected every evaluation to fail, got %d of %d", run.Failures, run.Evaluations)
	}
	if run.BestScore != PenaltyFitness {
		t.Fatalf("expected penalty best score, got %v", run.BestScore)
	}
	if run.Candidates != 0 || run.BestConfig != nil {
		t.Fatalf("expected no scored candidates, got %d", run.Candidates)
	}
}

func TestRunExperimentRecordsMetrics(t *testing.T) {
	c := metrics.NewCollector()
	exp := smallExperiment()
	res, err := NewOrchestrator(benchmark.NewSynthetic(), &ValidErrorObjective{}).
		WithMetrics(c).
		RunExperiment(context.Background(), exp)
	if err != nil {
		t.Fatalf("RunExperiment: %v", err)
	}

	evaluations, failures := 0, 0
	for _, run := range res.Runs {
		evaluations += run.Evaluations
		failures += run.Failures
	}
	labels := metrics.SpaceLabels(1)
	timed := c.Aggregation(metrics.MetricEvaluationSeconds, labels)
	if timed == nil || int(timed.Count) != evaluations {
		t.Fatalf("expected %d timed evaluations, got %+v", evaluations, timed)
	}
	fitness := c.Aggregation(metrics.MetricFitness, labels)
	if fitness == nil || int(fitness.Count) != evaluations-failures {
		t.Fatalf("expected %d fitness points, got %+v", evaluations-failures, fitness)
	}
}

func TestRunExperimentTrainingTimePenaltyNeverWins(t *testing.T) {
	exp := smallExperiment()
	exp.Objective = string(ObjectiveMinimizeTrainingTime)
	res, err := NewOrchestrator(sparseBenchmark{benchmark.NewSynthetic()}, &TrainingTimeObjective{}).
		RunExperiment(context.Background(), exp)
	if err != nil {
		t.Fatalf("RunExperiment: %v", err)
	}
	for _, run := range res.Runs {
		if run.Failures == run.Evaluations {
			t.Fatalf("expected some cells to be found, got %d failures of %d", run.Failures, run.Evaluations)
		}
		if run.BestScore != 500 {
			t.Fatalf("expected best score 500 from a found cell, got %v (failures %d of %d)",
				run.BestScore, run.Failures, run.Evaluations)
		}
		if run.BestConfig == nil || run.BestResult.TrainingTime != run.BestScore {
			t.Fatalf("expected best config to match best score, got %+v", run.BestResult)
		}
	}
}

func TestEvaluatorUsesObjectivePenalty(t *testing.T) {
	table, err := benchmark.OpenTable(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	defer table.Close()

	tests := []struct {
		objective ObjectiveFunction
		expected  float64
	}{
		{&ValidErrorObjective{}, PenaltyFitness},
		{&TrainingTimeObjective{}, TrainingTimePenalty},
		{&ValidAccuracyObjective{}, 0},
	}
	for _, tt := range tests {
		exp := smallExperiment()
		exp.Runs = 0
		res, err := NewOrchestrator(table, tt.objective).RunExperiment(context.Background(), exp)
		if err != nil {
			t.Fatalf("%s: RunExperiment: %v", tt.objective.Name(), err)
		}
		if got := res.Runs[0].BestScore; got != tt.expected {
			t.Fatalf("%s: expected penalty %v, got %v", tt.objective.Name(), tt.expected, got)
		}
	}
}

func TestRunExperimentRegret(t *testing.T) {
	exp := smallExperiment()
	exp.Runs = 0
	res, err := NewOrchestrator(referenceBenchmark{benchmark.NewSynthetic()}, &ValidErrorObjective{}).
		RunExperiment(context.Background(), exp)
	if err != nil {
		t.Fatalf("RunExperiment: %v", err)
	}
	run := res.Runs[0]
	if run.BestFingerprint == "" {
		t.Fatalf("expected a best architecture")
	}
	want := run.BestResult.ValidError - 0.01
	if math.Abs(run.ValidRegret-want) > 1e-12 {
		t.Fatalf("expected valid regret %v, got %v", want, run.ValidRegret)
	}
}

func TestRunExperimentWritesSQLite(t *testing.T) {
	db, err := history.NewSQLiteSink(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteSink: %v", err)
	}
	defer db.Close()

	orch := NewOrchestrator(benchmark.NewSynthetic(), &ValidErrorObjective{}, db)
	res, err := orch.RunExperiment(context.Background(), smallExperiment())
	if err != nil {
		t.Fatalf("RunExperiment: %v", err)
	}
	summaries, err := db.Summaries(context.Background(), orch.ExperimentID())
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 stored runs, got %d", len(summaries))
	}
	for i, s := range summaries {
		if s.Evaluations != res.Runs[i].Evaluations {
			t.Fatalf("run %d: expected %d evaluations, got %d", i, res.Runs[i].Evaluations, s.Evaluations)
		}
	}
}

func TestRunExperimentErrors(t *testing.T) {
	orch := NewOrchestrator(benchmark.NewSynthetic(), &ValidErrorObjective{})
	if _, err := orch.RunExperiment(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil experiment")
	}

	exp := smallExperiment()
	exp.SearchSpaces = []int{9}
	var unknown *nasbench.UnknownSearchSpaceError
	if _, err := orch.RunExperiment(context.Background(), exp); !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSearchSpaceError, got %v", err)
	}

	exp = smallExperiment()
	exp.FixType = "wrap"
	if _, err := orch.RunExperiment(context.Background(), exp); err == nil {
		t.Fatalf("expected error for unknown fix type")
	}

	exp = smallExperiment()
	exp.Convergence = &config.Convergence{Strategy: "sometimes"}
	if _, err := orch.RunExperiment(context.Background(), exp); err == nil {
		t.Fatalf("expected error for unknown convergence strategy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := orch.RunExperiment(ctx, smallExperiment()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunExperimentSinkFailure(t *testing.T) {
	dir := t.TempDir()
	sink, err := history.NewFileSink(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := os.RemoveAll(sink.Dir); err != nil {
		t.Fatal(err)
	}
	exp := smallExperiment()
	exp.Runs = 0
	if _, err := NewOrchestrator(benchmark.NewSynthetic(), &ValidErrorObjective{}, sink).
		RunExperiment(context.Background(), exp); err == nil {
		t.Fatalf("expected error when the history cannot be written")
	}
}
