package improvement

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
	"github.com/GoSim-25-26J-441/denas/internal/history"
	"github.com/GoSim-25-26J-441/denas/internal/space"
)

// SelectionStrategy defines how to select the best architecture from multiple candidates
type SelectionStrategy interface {
	// SelectBest chooses the best candidate
	SelectBest(candidates []*Candidate, objective ObjectiveFunction) (*Candidate, error)
	// Name returns the name of the selection strategy
	Name() string
}

// Candidate is a distinct architecture scored during a run
type Candidate struct {
	Fingerprint string
	Config      space.Configuration
	Result      benchmark.Result
	Score       float64
	Generation  int
}

// CandidatesFromRecords returns one candidate per fingerprint, keeping the
// first successful evaluation. Failed evaluations are skipped.
func CandidatesFromRecords(records []history.Record) []*Candidate {
	seen := make(map[string]bool)
	out := make([]*Candidate, 0)
	for _, rec := range records {
		if rec.Err != "" || rec.Fingerprint == "" || seen[rec.Fingerprint] {
			continue
		}
		seen[rec.Fingerprint] = true
		out = append(out, &Candidate{
			Fingerprint: rec.Fingerprint,
			Config:      rec.Config,
			Result:      rec.Result,
			Score:       rec.Fitness,
			Generation:  rec.Generation,
		})
	}
	return out
}

// BestScoreStrategy selects the candidate with the best (lowest) objective score
type BestScoreStrategy struct{}

func (s *BestScoreStrategy) Name() string {
	return "best_score"
}

func (s *BestScoreStrategy) SelectBest(candidates []*Candidate, objective ObjectiveFunction) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates provided")
	}
	if objective == nil {
		return nil, fmt.Errorf("objective function is required")
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score < best.Score {
			best = c
		}
	}
	return best, nil
}

// ParetoOptimalStrategy selects among candidates that are not dominated on
// the primary score and every secondary objective
type ParetoOptimalStrategy struct {
	secondaryObjectives []ObjectiveFunction
}

// NewParetoOptimalStrategy creates a new Pareto optimal selection strategy
func NewParetoOptimalStrategy(secondaryObjectives []ObjectiveFunction) *ParetoOptimalStrategy {
	return &ParetoOptimalStrategy{
		secondaryObjectives: secondaryObjectives,
	}
}

func (s *ParetoOptimalStrategy) Name() string {
	return "pareto_optimal"
}

// Front returns the non-dominated candidates in input order
func (s *ParetoOptimalStrategy) Front(candidates []*Candidate) []*Candidate {
	return findParetoOptimal(candidates, s.secondaryObjectives)
}

func (s *ParetoOptimalStrategy) SelectBest(candidates []*Candidate, objective ObjectiveFunction) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates provided")
	}
	if objective == nil {
		return nil, fmt.Errorf("objective function is required")
	}

	front := s.Front(candidates)
	if len(front) == 0 {
		return (&BestScoreStrategy{}).SelectBest(candidates, objective)
	}
	// Among the front, prefer the best primary score
	return (&BestScoreStrategy{}).SelectBest(front, objective)
}

// findParetoOptimal returns candidates not dominated by any other.
// The primary objective is already stored in Candidate.Score.
func findParetoOptimal(candidates []*Candidate, secondary []ObjectiveFunction) []*Candidate {
	front := make([]*Candidate, 0)
	for _, c := range candidates {
		dominated := false
		for _, other := range candidates {
			if c != other && dominates(other, c, secondary) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, c)
		}
	}
	return front
}

const dominanceTolerance = 1e-9

// dominates reports whether a is no worse than b everywhere and strictly better somewhere
func dominates(a, b *Candidate, secondary []ObjectiveFunction) bool {
	scoresA := []float64{a.Score}
	scoresB := []float64{b.Score}
	for _, obj := range secondary {
		sa, errA := obj.Evaluate(&a.Result)
		sb, errB := obj.Evaluate(&b.Result)
		if errA != nil || errB != nil {
			continue
		}
		scoresA = append(scoresA, sa)
		scoresB = append(scoresB, sb)
	}

	strictlyBetter := false
	for i := range scoresA {
		if scoresA[i] > scoresB[i]+dominanceTolerance {
			return false
		}
		if scoresA[i] < scoresB[i]-dominanceTolerance {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}

// BalancedStrategy selects the candidate with the lowest weighted sum of
// the primary score and additional objectives
type BalancedStrategy struct {
	weights map[string]float64 // objective name -> weight
}

// NewBalancedStrategy creates a new balanced selection strategy
func NewBalancedStrategy(weights map[string]float64) *BalancedStrategy {
	return &BalancedStrategy{
		weights: weights,
	}
}

func (s *BalancedStrategy) Name() string {
	return "balanced"
}

func (s *BalancedStrategy) SelectBest(candidates []*Candidate, objective ObjectiveFunction) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates provided")
	}
	if objective == nil {
		return nil, fmt.Errorf("objective function is required")
	}

	best := candidates[0]
	bestScore := s.weightedScore(best, objective)
	for _, c := range candidates[1:] {
		if score := s.weightedScore(c, objective); score < bestScore {
			best, bestScore = c, score
		}
	}
	return best, nil
}

func (s *BalancedStrategy) weightedScore(c *Candidate, primary ObjectiveFunction) float64 {
	score := c.Score
	for name, weight := range s.weights {
		if name == primary.Name() {
			continue
		}
		obj, err := NewObjectiveFunction(name)
		if err != nil {
			continue
		}
		v, err := obj.Evaluate(&c.Result)
		if err != nil || math.IsNaN(v) {
			continue
		}
		score += weight * v
	}
	return score
}

// SelectBestCandidate is a convenience function that uses the default strategy
func SelectBestCandidate(candidates []*Candidate, objective ObjectiveFunction) (*Candidate, error) {
	return (&BestScoreStrategy{}).SelectBest(candidates, objective)
}
