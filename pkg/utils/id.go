package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateExperimentID generates a unique identifier for one invocation of the driver
func GenerateExperimentID() string {
	return uuid.New().String()
}

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("run-%s-%s", timestamp, uuid.New().String()[:8])
}

// HistoryFileName returns the file name a run's evaluation history is written to.
// Runs are identified by run index, search space and seed.
func HistoryFileName(runIndex, searchSpace int, seed int64) string {
	return fmt.Sprintf("DE_%d_ssp_%d_seed_%d.pb", runIndex, searchSpace, seed)
}
