package improvement

import (
	"math"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
)

// ObjectiveFunction scores a benchmark result.
// Lower scores are better (for minimization objectives).
type ObjectiveFunction interface {
	// Evaluate computes the objective value from a benchmark result.
	// Returns the score and an error if evaluation fails.
	Evaluate(result *benchmark.Result) (float64, error)

	// Name returns the name of the objective function.
	Name() string

	// Direction returns whether we're minimizing (true) or maximizing (false).
	Direction() bool // true = minimize, false = maximize

	// Penalty is the score given to candidates that cannot be evaluated.
	// It is never better than any score Evaluate can return.
	Penalty() float64
}

// ObjectiveType represents the type of objective function
type ObjectiveType string

const (
	// ObjectiveMinimizeValidError minimizes validation error
	ObjectiveMinimizeValidError ObjectiveType = "valid_error"
	// ObjectiveMinimizeTestError minimizes test error
	ObjectiveMinimizeTestError ObjectiveType = "test_error"
	// ObjectiveMinimizeTrainingTime minimizes training time in seconds
	ObjectiveMinimizeTrainingTime ObjectiveType = "training_time"
	// ObjectiveMaximizeValidAccuracy maximizes validation accuracy
	ObjectiveMaximizeValidAccuracy ObjectiveType = "valid_accuracy"
)

// TrainingTimePenalty is the training time score of cells without timing data
// and of cells that cannot be evaluated
const TrainingTimePenalty = 1e9

// DefaultObjective is used when no objective is configured
const DefaultObjective = ObjectiveMinimizeValidError

// ObjectiveTypes lists the supported objective names
func ObjectiveTypes() []string {
	return []string{
		string(ObjectiveMinimizeValidError),
		string(ObjectiveMinimizeTestError),
		string(ObjectiveMinimizeTrainingTime),
		string(ObjectiveMaximizeValidAccuracy),
	}
}

// NewObjectiveFunction creates an objective function from a type string.
// An empty string selects DefaultObjective.
func NewObjectiveFunction(objType string) (ObjectiveFunction, error) {
	if objType == "" {
		objType = string(DefaultObjective)
	}
	switch ObjectiveType(objType) {
	case ObjectiveMinimizeValidError:
		return &ValidErrorObjective{}, nil
	case ObjectiveMinimizeTestError:
		return &TestErrorObjective{}, nil
	case ObjectiveMinimizeTrainingTime:
		return &TrainingTimeObjective{}, nil
	case ObjectiveMaximizeValidAccuracy:
		return &ValidAccuracyObjective{}, nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: objType}
	}
}

func checkResult(result *benchmark.Result) error {
	if result == nil {
		return &InvalidResultError{Reason: "result is nil"}
	}
	if math.IsNaN(result.ValidError) || math.IsNaN(result.TestError) || math.IsNaN(result.TrainingTime) {
		return &InvalidResultError{Reason: "result contains NaN"}
	}
	return nil
}

// ValidErrorObjective minimizes validation error
type ValidErrorObjective struct{}

func (o *ValidErrorObjective) Name() string {
	return string(ObjectiveMinimizeValidError)
}

func (o *ValidErrorObjective) Direction() bool {
	return true // minimize
}

// Penalty is a 100% validation error
func (o *ValidErrorObjective) Penalty() float64 {
	return PenaltyFitness
}

func (o *ValidErrorObjective) Evaluate(result *benchmark.Result) (float64, error) {
	if err := checkResult(result); err != nil {
		return 0, err
	}
	return result.ValidError, nil
}

// TestErrorObjective minimizes test error
type TestErrorObjective struct{}

func (o *TestErrorObjective) Name() string {
	return string(ObjectiveMinimizeTestError)
}

func (o *TestErrorObjective) Direction() bool {
	return true // minimize
}

func (o *TestErrorObjective) Penalty() float64 {
	return PenaltyFitness
}

func (o *TestErrorObjective) Evaluate(result *benchmark.Result) (float64, error) {
	if err := checkResult(result); err != nil {
		return 0, err
	}
	return result.TestError, nil
}

// TrainingTimeObjective minimizes training time
type TrainingTimeObjective struct{}

func (o *TrainingTimeObjective) Name() string {
	return string(ObjectiveMinimizeTrainingTime)
}

func (o *TrainingTimeObjective) Direction() bool {
	return true // minimize
}

func (o *TrainingTimeObjective) Penalty() float64 {
	return TrainingTimePenalty
}

func (o *TrainingTimeObjective) Evaluate(result *benchmark.Result) (float64, error) {
	if err := checkResult(result); err != nil {
		return 0, err
	}
	if result.TrainingTime <= 0 {
		// No timing data
		return TrainingTimePenalty, nil
	}
	return result.TrainingTime, nil
}

// ValidAccuracyObjective maximizes validation accuracy
type ValidAccuracyObjective struct{}

func (o *ValidAccuracyObjective) Name() string {
	return string(ObjectiveMaximizeValidAccuracy)
}

func (o *ValidAccuracyObjective) Direction() bool {
	return false // maximize (so we negate the value)
}

// Penalty corresponds to zero accuracy
func (o *ValidAccuracyObjective) Penalty() float64 {
	return 0
}

func (o *ValidAccuracyObjective) Evaluate(result *benchmark.Result) (float64, error) {
	if err := checkResult(result); err != nil {
		return 0, err
	}
	// For maximization, we return negative so that lower is better
	return -(1 - result.ValidError), nil
}

// UnknownObjectiveError indicates an unknown objective type
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective type: " + e.ObjectiveType
}

// InvalidResultError indicates a benchmark result that cannot be scored
type InvalidResultError struct {
	Reason string
}

func (e *InvalidResultError) Error() string {
	return "invalid result: " + e.Reason
}
