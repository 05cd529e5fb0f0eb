// Package benchmark answers fitness queries for cells: a tabular benchmark
// stored in SQLite and a deterministic synthetic surrogate.
package benchmark

import (
	"context"
	"errors"

	"github.com/GoSim-25-26J-441/denas/internal/nasbench"
)

// DefaultBudget is the number of training epochs results are reported for
const DefaultBudget = 108

// ErrNotFound is returned when the benchmark holds no entry for a cell
var ErrNotFound = errors.New("architecture not found in benchmark")

// Result is the benchmark's answer for one cell at one budget
type Result struct {
	ValidError   float64
	TestError    float64
	TrainingTime float64
	Budget       int
}

// Benchmark looks up the performance of a cell trained for budget epochs
type Benchmark interface {
	Query(ctx context.Context, cell *nasbench.Cell, budget int) (Result, error)
	Name() string
}
