package improvement

import (
	"fmt"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
	"github.com/GoSim-25-26J-441/denas/pkg/utils"
)

// ResultComparison compares two benchmark results
type ResultComparison struct {
	ObjectiveDiff    float64 // score(b) - score(a)
	Improvement      bool    // true if b is better than a
	ValidErrorDiff   float64
	TestErrorDiff    float64
	TrainingTimeDiff float64
}

// CompareResults compares two benchmark results under objective
func CompareResults(a, b *benchmark.Result, objective ObjectiveFunction) (*ResultComparison, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("results must not be nil")
	}
	if objective == nil {
		return nil, fmt.Errorf("objective function is nil")
	}
	scoreA, err := objective.Evaluate(a)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate objective for first result: %w", err)
	}
	scoreB, err := objective.Evaluate(b)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate objective for second result: %w", err)
	}

	// Scores of maximization objectives are already negated, lower is better
	return &ResultComparison{
		ObjectiveDiff:    scoreB - scoreA,
		Improvement:      scoreB < scoreA,
		ValidErrorDiff:   b.ValidError - a.ValidError,
		TestErrorDiff:    b.TestError - a.TestError,
		TrainingTimeDiff: b.TrainingTime - a.TrainingTime,
	}, nil
}

// SpaceStatistics aggregates the best scores of all runs over one search space
type SpaceStatistics struct {
	SearchSpace int
	Runs        int
	BestRunID   string
	WorstRunID  string
	BestScore   float64
	WorstScore  float64
	MeanScore   float64
	StdDev      float64
	Median      float64
	MeanRegret  float64 // NaN when no run has a regret
	Trend       string  // "improving", "degrading", "stable" across run indices
}

// CompareRuns groups run summaries by search space, ordered by search space id
func CompareRuns(runs []RunSummary) []SpaceStatistics {
	bySpace := make(map[int][]RunSummary)
	for _, r := range runs {
		bySpace[r.SearchSpace] = append(bySpace[r.SearchSpace], r)
	}
	ids := make([]int, 0, len(bySpace))
	for id := range bySpace {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]SpaceStatistics, 0, len(ids))
	for _, id := range ids {
		group := bySpace[id]
		sort.Slice(group, func(i, j int) bool { return group[i].RunIndex < group[j].RunIndex })

		scores := make([]float64, len(group))
		regrets := make([]float64, 0, len(group))
		for i, r := range group {
			scores[i] = r.BestScore
			if !math.IsNaN(r.ValidRegret) {
				regrets = append(regrets, r.ValidRegret)
			}
		}
		best, worst := 0, 0
		for i, s := range scores {
			if s < scores[best] {
				best = i
			}
			if s > scores[worst] {
				worst = i
			}
		}
		stats := SpaceStatistics{
			SearchSpace: id,
			Runs:        len(group),
			BestRunID:   group[best].RunID,
			WorstRunID:  group[worst].RunID,
			BestScore:   scores[best],
			WorstScore:  scores[worst],
			MeanScore:   utils.Mean(scores),
			StdDev:      utils.StdDev(scores),
			Median:      utils.Percentile(scores, 50),
			MeanRegret:  math.NaN(),
			Trend:       determineTrend(scores),
		}
		if len(regrets) > 0 {
			stats.MeanRegret = utils.Mean(regrets)
		}
		out = append(out, stats)
	}
	return out
}

// determineTrend fits a line through scores; lower is always better
func determineTrend(scores []float64) string {
	if len(scores) < 2 {
		return "stable"
	}

	n := float64(len(scores))
	var sumX, sumY, sumXY, sumX2 float64
	for i, score := range scores {
		x := float64(i)
		sumX += x
		sumY += score
		sumXY += x * score
		sumX2 += x * x
	}
	slope := (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)

	if slope < -0.01 {
		return "improving"
	}
	if slope > 0.01 {
		return "degrading"
	}
	return "stable"
}

// GetImprovementPercentage calculates the percentage improvement between two scores
func GetImprovementPercentage(score1, score2 float64, minimize bool) float64 {
	if score1 == 0 {
		return 0
	}
	diff := score2 - score1
	if minimize {
		return -(diff / score1) * 100
	}
	return (diff / score1) * 100
}
