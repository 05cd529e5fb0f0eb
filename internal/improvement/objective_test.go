package improvement

import (
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
)

func TestNewObjectiveFunction(t *testing.T) {
	tests := []struct {
		name     string
		objType  string
		wantErr  bool
		wantName string
	}{
		{name: "default", objType: "", wantName: "valid_error"},
		{name: "valid error", objType: "valid_error", wantName: "valid_error"},
		{name: "test error", objType: "test_error", wantName: "test_error"},
		{name: "training time", objType: "training_time", wantName: "training_time"},
		{name: "valid accuracy", objType: "valid_accuracy", wantName: "valid_accuracy"},
		{name: "unknown objective", objType: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := NewObjectiveFunction(tt.objType)
			if tt.wantErr {
				var unknown *UnknownObjectiveError
				if !errors.As(err, &unknown) {
					t.Fatalf("expected UnknownObjectiveError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obj.Name() != tt.wantName {
				t.Fatalf("expected name %s, got %s", tt.wantName, obj.Name())
			}
		})
	}
}

func TestObjectiveTypesAreConstructible(t *testing.T) {
	for _, name := range ObjectiveTypes() {
		if _, err := NewObjectiveFunction(name); err != nil {
			t.Fatalf("expected %s to be constructible, got %v", name, err)
		}
	}
}

func TestObjectiveEvaluate(t *testing.T) {
	result := &benchmark.Result{ValidError: 0.06, TestError: 0.065, TrainingTime: 1200, Budget: 108}
	tests := []struct {
		objType  string
		want     float64
		minimize bool
	}{
		{"valid_error", 0.06, true},
		{"test_error", 0.065, true},
		{"training_time", 1200, true},
		{"valid_accuracy", -0.94, false},
	}
	for _, tt := range tests {
		t.Run(tt.objType, func(t *testing.T) {
			obj, _ := NewObjectiveFunction(tt.objType)
			got, err := obj.Evaluate(result)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if obj.Direction() != tt.minimize {
				t.Fatalf("expected direction %v, got %v", tt.minimize, obj.Direction())
			}
		})
	}
}

func TestObjectiveEvaluateInvalid(t *testing.T) {
	for _, name := range ObjectiveTypes() {
		obj, _ := NewObjectiveFunction(name)
		var invalid *InvalidResultError
		if _, err := obj.Evaluate(nil); !errors.As(err, &invalid) {
			t.Fatalf("%s: expected InvalidResultError for nil result, got %v", name, err)
		}
		if _, err := obj.Evaluate(&benchmark.Result{ValidError: math.NaN()}); !errors.As(err, &invalid) {
			t.Fatalf("%s: expected InvalidResultError for NaN result, got %v", name, err)
		}
	}
}

func TestTrainingTimeObjectiveMissingData(t *testing.T) {
	obj := &TrainingTimeObjective{}
	got, err := obj.Evaluate(&benchmark.Result{ValidError: 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1e9 {
		t.Fatalf("expected penalty 1e9, got %v", got)
	}
}

func TestObjectivePenaltyNeverBeatsAScore(t *testing.T) {
	results := []benchmark.Result{
		{ValidError: 0, TestError: 0, TrainingTime: 1},
		{ValidError: 0.05, TestError: 0.06, TrainingTime: 500},
		{ValidError: 1, TestError: 1, TrainingTime: 5000},
	}
	for _, name := range ObjectiveTypes() {
		obj, err := NewObjectiveFunction(name)
		if err != nil {
			t.Fatalf("NewObjectiveFunction(%s): %v", name, err)
		}
		for i := range results {
			score, err := obj.Evaluate(&results[i])
			if err != nil {
				t.Fatalf("%s: Evaluate: %v", name, err)
			}
			if obj.Penalty() < score {
				t.Fatalf("%s: expected penalty %v to be no better than score %v", name, obj.Penalty(), score)
			}
		}
	}

	if p := (&TrainingTimeObjective{}).Penalty(); p != TrainingTimePenalty {
		t.Fatalf("expected training time penalty %v, got %v", TrainingTimePenalty, p)
	}
	if p := (&ValidErrorObjective{}).Penalty(); p != PenaltyFitness {
		t.Fatalf("expected valid error penalty %v, got %v", PenaltyFitness, p)
	}
}
