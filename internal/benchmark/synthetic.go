package benchmark

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/GoSim-25-26J-441/denas/internal/nasbench"
)

// Synthetic is a deterministic surrogate: every cell gets a fixed
// pseudo-random error derived from its fingerprint, nudged by its
// operations so that the landscape has some structure to optimize.
// Longer budgets lower the error.
type Synthetic struct{}

// NewSynthetic returns the synthetic surrogate benchmark
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Name identifies the benchmark in logs and history headers
func (s *Synthetic) Name() string {
	return "synthetic"
}

// Query computes the surrogate result for cell at budget
func (s *Synthetic) Query(ctx context.Context, cell *nasbench.Cell, budget int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if budget <= 0 {
		return Result{}, fmt.Errorf("budget must be positive, got %d", budget)
	}
	fp, err := cell.Fingerprint()
	if err != nil {
		return Result{}, err
	}
	raw, err := hex.DecodeString(fp[:16])
	if err != nil {
		return Result{}, fmt.Errorf("decode fingerprint: %w", err)
	}
	noise := float64(binary.BigEndian.Uint64(raw)>>11) / float64(uint64(1)<<53)

	pruned := cell.Prune()
	convs := 0
	for _, op := range pruned.Ops {
		switch op {
		case nasbench.OpConv3x3:
			convs += 2
		case nasbench.OpConv1x1:
			convs++
		}
	}
	// 0.05 floor, up to ~0.25 for poor cells; conv-heavy cells do better
	base := 0.05 + 0.15*noise + 0.05/float64(1+convs)
	scale := float64(DefaultBudget) / float64(budget)
	if scale < 1 {
		scale = 1
	}
	valid := base * (0.7 + 0.3*scale)
	if valid > 1 {
		valid = 1
	}
	return Result{
		ValidError:   valid,
		TestError:    valid + 0.004*noise,
		TrainingTime: float64(budget) * (10 + 4*float64(pruned.Edges()) + float64(convs)),
		Budget:       budget,
	}, nil
}
