package config

// Experiment configures a sweep of differential evolution runs over one or
// more search spaces
type Experiment struct {
	LogLevel     string `yaml:"log_level"`
	SearchSpaces []int  `yaml:"search_spaces"`

	// Seeding: run r uses seed r unless FixSeed is set, in which case every run uses seed 0
	FixSeed  bool `yaml:"fix_seed"`
	RunID    int  `yaml:"run_id"`
	Runs     int  `yaml:"runs"` // 0 runs RunID only
	RunStart int  `yaml:"run_start"`

	Generations    int     `yaml:"generations"`
	PopSize        int     `yaml:"pop_size"`
	Strategy       string  `yaml:"strategy"`
	MutationFactor float64 `yaml:"mutation_factor"`
	CrossoverProb  float64 `yaml:"crossover_prob"`
	DEType         string  `yaml:"de_type"`
	FixType        string  `yaml:"fix_type"`
	Parallel       bool    `yaml:"parallel"`
	Verbose        bool    `yaml:"verbose"`

	Benchmark string `yaml:"benchmark"` // table or synthetic
	DataDir   string `yaml:"data_dir"`
	MaxBudget int    `yaml:"max_budget"`
	Objective string `yaml:"objective"`

	OutputPath string `yaml:"output_path"`
	Folder     string `yaml:"folder,omitempty"`
	HistoryDB  string `yaml:"history_db,omitempty"`
	HealthAddr string `yaml:"health_addr,omitempty"`
	HTTPAddr   string `yaml:"http_addr,omitempty"`

	Convergence *Convergence `yaml:"convergence,omitempty"`
}

// Convergence configures early stopping of a run
type Convergence struct {
	Strategy                 string  `yaml:"strategy"` // none, no_improvement, plateau, threshold, variance, combined
	NoImprovementGenerations int     `yaml:"no_improvement_generations"`
	PlateauGenerations       int     `yaml:"plateau_generations"`
	MinGenerations           int     `yaml:"min_generations"`
	ImprovementThreshold     float64 `yaml:"improvement_threshold"`
	ScoreTolerance           float64 `yaml:"score_tolerance"`
}

// DE variants
const (
	DETypeDefault = "default"
	DETypeCustom  = "custom"
)

// Benchmark backends
const (
	BenchmarkTable     = "table"
	BenchmarkSynthetic = "synthetic"
)

// StrategyChoices lists the accepted differential evolution strategy names
var StrategyChoices = []string{
	"rand1_bin", "rand2_bin", "rand2dir_bin", "best1_bin", "best2_bin",
	"currenttobest1_bin", "randtobest1_bin",
	"rand1_exp", "rand2_exp", "rand2dir_exp", "best1_exp", "best2_exp",
	"currenttobest1_exp", "randtobest1_exp",
}

// IsStrategy reports whether name is one of StrategyChoices
func IsStrategy(name string) bool {
	for _, s := range StrategyChoices {
		if s == name {
			return true
		}
	}
	return false
}

// DefaultExperiment returns the configuration used when no file or flag overrides a field
func DefaultExperiment() *Experiment {
	return &Experiment{
		LogLevel:       "info",
		SearchSpaces:   []int{1, 2, 3},
		RunID:          0,
		Runs:           0,
		RunStart:       0,
		Generations:    100,
		PopSize:        20,
		Strategy:       "rand1_bin",
		MutationFactor: 0.5,
		CrossoverProb:  0.5,
		DEType:         DETypeDefault,
		FixType:        "random",
		Benchmark:      BenchmarkTable,
		DataDir:        "../nasbench-1shot1/nasbench_analysis/nasbench_data/108_e/nasbench_only108.db",
		MaxBudget:      108,
		Objective:      "valid_error",
		OutputPath:     "./results",
		Verbose:        true,
	}
}

// ResolvedFolder returns the output folder name. An empty Folder falls back to
// "de" for the custom variant and "de_default" otherwise.
func (e *Experiment) ResolvedFolder() string {
	if e.Folder != "" {
		return e.Folder
	}
	if e.DEType == DETypeCustom {
		return "de"
	}
	return "de_default"
}

// RunIndices returns the run indices of the sweep. With Runs unset the single
// run uses RunID; otherwise runs RunStart..RunStart+Runs-1 are performed.
func (e *Experiment) RunIndices() []int {
	if e.Runs <= 0 {
		return []int{e.RunID}
	}
	out := make([]int, e.Runs)
	for i := range out {
		out[i] = e.RunStart + i
	}
	return out
}

// SeedFor returns the random seed of run index r. A single run (Runs unset)
// is always seeded with 0, so its history is DE_{run_id}_ssp_{space}_seed_0.
func (e *Experiment) SeedFor(r int) int64 {
	if e.FixSeed || e.Runs <= 0 {
		return 0
	}
	return int64(r)
}
