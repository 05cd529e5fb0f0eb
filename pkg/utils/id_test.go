package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateExperimentID(t *testing.T) {
	id1 := GenerateExperimentID()
	id2 := GenerateExperimentID()

	if id1 == id2 {
		t.Error("GenerateExperimentID should return unique IDs")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("GenerateExperimentID should return a UUID, got %q: %v", id1, err)
	}
}

func TestGenerateRunID(t *testing.T) {
	id := GenerateRunID()
	if !strings.HasPrefix(id, "run-") {
		t.Errorf("GenerateRunID should start with run-: %s", id)
	}
	if GenerateRunID() == id {
		t.Error("GenerateRunID should return unique IDs")
	}
}

func TestHistoryFileName(t *testing.T) {
	tests := []struct {
		run, space int
		seed       int64
		expected   string
	}{
		{0, 1, 0, "DE_0_ssp_1_seed_0.pb"},
		{4, 3, 4, "DE_4_ssp_3_seed_4.pb"},
		{12, 2, 0, "DE_12_ssp_2_seed_0.pb"},
	}
	for _, tt := range tests {
		if got := HistoryFileName(tt.run, tt.space, tt.seed); got != tt.expected {
			t.Errorf("HistoryFileName(%d, %d, %d) = %s, expected %s", tt.run, tt.space, tt.seed, got, tt.expected)
		}
	}
}
