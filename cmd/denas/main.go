package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
	"github.com/GoSim-25-26J-441/denas/internal/history"
	"github.com/GoSim-25-26J-441/denas/internal/improvement"
	"github.com/GoSim-25-26J-441/denas/internal/metrics"
	"github.com/GoSim-25-26J-441/denas/internal/monitor"
	"github.com/GoSim-25-26J-441/denas/pkg/config"
	"github.com/GoSim-25-26J-441/denas/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("experiment failed", "error", err)
		os.Exit(1)
	}
}

// run parses args, executes the experiment and prints one line per run to out
func run(ctx context.Context, args []string, out io.Writer) error {
	exp, err := parseFlags(args)
	if err != nil {
		return err
	}
	logger.SetDefault(logger.NewText(exp.LogLevel, os.Stderr))

	bench, closeBench, err := openBenchmark(exp)
	if err != nil {
		return err
	}
	defer closeBench()

	objective, err := improvement.NewObjectiveFunction(exp.Objective)
	if err != nil {
		return err
	}

	outDir := filepath.Join(exp.OutputPath, exp.ResolvedFolder())
	fileSink, err := history.NewFileSink(outDir)
	if err != nil {
		return err
	}
	sinks := []history.Sink{fileSink}
	var store *history.SQLiteSink
	if exp.HistoryDB != "" {
		store, err = history.NewSQLiteSink(exp.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	collector := metrics.NewCollector()
	orch := improvement.NewOrchestrator(bench, objective, sinks...).WithMetrics(collector)

	if exp.HealthAddr != "" || exp.HTTPAddr != "" {
		mon := monitor.NewServer()
		orch.WithMonitor(mon)
		stopMonitor, err := startMonitor(exp, mon, collector)
		if err != nil {
			return err
		}
		defer stopMonitor()
	}

	logger.Info("experiment starting",
		"experiment_id", orch.ExperimentID(),
		"search_spaces", exp.SearchSpaces,
		"runs", exp.RunIndices(),
		"benchmark", bench.Name(),
		"objective", objective.Name(),
		"output", outDir)

	collector.Start()
	res, err := orch.RunExperiment(ctx, exp)
	collector.Stop()
	if res != nil {
		printResults(out, res)
	}
	if err != nil {
		return err
	}
	logger.Info("experiment finished", "best_run", res.BestRunID, "best_score", res.BestScore, "duration", res.Duration)
	if agg := collector.Summary().Aggregations[metrics.MetricEvaluationSeconds]; agg != nil {
		logger.Info("evaluation timing", "evaluations", agg.Count, "mean_seconds", agg.Mean, "p95_seconds", agg.P95)
	}
	if store != nil {
		stored, err := store.Summaries(ctx, orch.ExperimentID())
		if err != nil {
			return fmt.Errorf("read stored runs: %w", err)
		}
		logger.Info("history stored", "db", exp.HistoryDB, "runs", len(stored))
	}
	return nil
}

func openBenchmark(exp *config.Experiment) (benchmark.Benchmark, func(), error) {
	switch exp.Benchmark {
	case config.BenchmarkSynthetic:
		return benchmark.NewSynthetic(), func() {}, nil
	default:
		if _, err := os.Stat(exp.DataDir); err != nil {
			return nil, nil, fmt.Errorf("benchmark table %s: %w", exp.DataDir, err)
		}
		table, err := benchmark.OpenTable(exp.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return table, func() { table.Close() }, nil
	}
}

func startMonitor(exp *config.Experiment, mon *monitor.Server, collector *metrics.Collector) (func(), error) {
	var stops []func()
	stopAll := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if exp.HealthAddr != "" {
		lis, err := net.Listen("tcp", exp.HealthAddr)
		if err != nil {
			return nil, fmt.Errorf("listen for health service on %s: %w", exp.HealthAddr, err)
		}
		go func() {
			if err := mon.Serve(lis); err != nil {
				logger.Error("health server error", "error", err)
			}
		}()
		stops = append(stops, mon.Stop)
	}

	if exp.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              exp.HTTPAddr,
			Handler:           monitor.NewHTTPServer(mon.Progress()).WithMetrics(collector).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", exp.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "error", err)
			}
		}()
		stops = append(stops, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown error", "error", err)
			}
		})
	}
	return stopAll, nil
}

func printResults(out io.Writer, res *improvement.ExperimentResult) {
	for _, r := range res.Runs {
		line := fmt.Sprintf("space=%d run=%d seed=%d best=%.6f evaluations=%d failures=%d generations=%d",
			r.SearchSpace, r.RunIndex, r.Seed, r.BestScore, r.Evaluations, r.Failures, r.Generations)
		if !math.IsNaN(r.ValidRegret) {
			line += fmt.Sprintf(" valid_regret=%.6f test_regret=%.6f", r.ValidRegret, r.TestRegret)
		}
		if r.Converged {
			line += " converged=" + strconv.Quote(r.ConvergenceReason)
		}
		fmt.Fprintln(out, line)
	}
	for _, s := range improvement.CompareRuns(res.Runs) {
		if s.Runs < 2 {
			continue
		}
		fmt.Fprintf(out, "space=%d runs=%d mean=%.6f std=%.6f median=%.6f best=%.6f worst=%.6f trend=%s\n",
			s.SearchSpace, s.Runs, s.MeanScore, s.StdDev, s.Median, s.BestScore, s.WorstScore, s.Trend)
	}
}

// parseFlags builds the experiment: defaults, then the -config file, then
// every flag set explicitly on the command line
func parseFlags(args []string) (*config.Experiment, error) {
	fs := flag.NewFlagSet("denas", flag.ContinueOnError)
	def := config.DefaultExperiment()

	var (
		configPath   = fs.String("config", "", "experiment YAML file; explicit flags override it")
		searchSpaces = fs.String("search_space", "", "search space to run (1, 2 or 3); empty runs all three")
		fixSeed      = fs.Bool("fix_seed", def.FixSeed, "use seed 0 for every run of a multi-run sweep")
		runID        = fs.Int("run_id", def.RunID, "unique number to identify a single run; a single run is always seeded with 0")
		runs         = fs.Int("runs", def.Runs, "number of runs to perform; 0 performs run_id only")
		runStart     = fs.Int("run_start", def.RunStart, "run index to start with for multiple runs")
		gens         = fs.Int("gens", def.Generations, "number of generations for DE to evolve")
		outputPath   = fs.String("output_path", def.OutputPath, "directory the histories are written to")
		dataDir      = fs.String("data_dir", def.DataDir, "SQLite benchmark table")
		bench        = fs.String("benchmark", def.Benchmark, "benchmark backend (table or synthetic)")
		popSize      = fs.Int("pop_size", def.PopSize, "population size")
		strategy     = fs.String("strategy", def.Strategy, "DE strategy: "+strings.Join(config.StrategyChoices, ", "))
		mutation     = fs.Float64("mutation_factor", def.MutationFactor, "mutation factor value")
		crossover    = fs.Float64("crossover_prob", def.CrossoverProb, "probability of crossover")
		maxBudget    = fs.Int("max_budget", def.MaxBudget, "training epochs queried from the benchmark")
		verbose      = fs.Bool("verbose", def.Verbose, "log DE progress every generation")
		deType       = fs.String("de_type", def.DEType, "DE variant (default or custom)")
		folder       = fs.String("folder", def.Folder, "output folder name under output_path")
		fixType      = fs.String("fix_type", def.FixType, "boundary repair (random or clip)")
		objective    = fs.String("objective", def.Objective, "objective: "+strings.Join(improvement.ObjectiveTypes(), ", "))
		parallel     = fs.Bool("parallel", def.Parallel, "evaluate the population in parallel")
		convergence  = fs.String("convergence", "none", "early stopping: "+strings.Join(improvement.ConvergenceStrategyNames(), ", "))
		historyDB    = fs.String("history_db", def.HistoryDB, "also write histories to this SQLite database")
		healthAddr   = fs.String("health_addr", def.HealthAddr, "serve gRPC health on this address")
		httpAddr     = fs.String("http_addr", def.HTTPAddr, "serve JSON progress on this address")
		logLevel     = fs.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	exp := def
	if *configPath != "" {
		loaded, err := config.LoadExperiment(*configPath)
		if err != nil {
			return nil, err
		}
		exp = loaded
	}

	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "search_space":
			spaces, err := parseSearchSpaces(*searchSpaces)
			if err != nil {
				parseErr = err
				return
			}
			exp.SearchSpaces = spaces
		case "fix_seed":
			exp.FixSeed = *fixSeed
		case "run_id":
			exp.RunID = *runID
		case "runs":
			exp.Runs = *runs
		case "run_start":
			exp.RunStart = *runStart
		case "gens":
			exp.Generations = *gens
		case "output_path":
			exp.OutputPath = *outputPath
		case "data_dir":
			exp.DataDir = *dataDir
		case "benchmark":
			exp.Benchmark = *bench
		case "pop_size":
			exp.PopSize = *popSize
		case "strategy":
			exp.Strategy = *strategy
		case "mutation_factor":
			exp.MutationFactor = *mutation
		case "crossover_prob":
			exp.CrossoverProb = *crossover
		case "max_budget":
			exp.MaxBudget = *maxBudget
		case "verbose":
			exp.Verbose = *verbose
		case "de_type":
			exp.DEType = *deType
		case "folder":
			exp.Folder = *folder
		case "fix_type":
			exp.FixType = *fixType
		case "objective":
			exp.Objective = *objective
		case "parallel":
			exp.Parallel = *parallel
		case "convergence":
			if exp.Convergence == nil {
				exp.Convergence = &config.Convergence{}
			}
			exp.Convergence.Strategy = *convergence
		case "history_db":
			exp.HistoryDB = *historyDB
		case "health_addr":
			exp.HealthAddr = *healthAddr
		case "http_addr":
			exp.HTTPAddr = *httpAddr
		case "log-level":
			exp.LogLevel = *logLevel
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if err := config.Validate(exp); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}
	return exp, nil
}

// parseSearchSpaces accepts "", "1" or a comma separated list such as "1,3"
func parseSearchSpaces(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "none") {
		return []int{1, 2, 3}, nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid search space %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
