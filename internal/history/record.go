// Package history records every fitness evaluation of a run and persists
// the ordered run history.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/denas/internal/benchmark"
	"github.com/GoSim-25-26J-441/denas/internal/space"
)

// Record is one fitness evaluation
type Record struct {
	Index       int
	Generation  int
	Vector      []float64
	Repaired    bool
	Config      space.Configuration
	Fingerprint string
	Valid       bool
	Fitness     float64
	Result      benchmark.Result
	Err         string
	Time        time.Time
}

// RunInfo identifies the run a history belongs to
type RunInfo struct {
	ExperimentID string
	RunID        string
	RunIndex     int
	SearchSpace  int
	Seed         int64
	Strategy     string
	Benchmark    string
	Objective    string
	Generations  int
	PopSize      int
	StartedAt    time.Time
}

// Sink persists a finished run history
type Sink interface {
	Write(ctx context.Context, info RunInfo, records []Record) error
}

// Recorder collects records from concurrent evaluations in arrival order
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add appends rec, assigning its Index and a timestamp when unset
func (r *Recorder) Add(rec Record) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Index = len(r.records)
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	r.records = append(r.records, rec)
	return rec
}

// Records returns a copy of the history
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset clears the history so consecutive runs do not accumulate
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

// Best returns the record with the lowest fitness
func (r *Recorder) Best() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return Record{}, false
	}
	best := 0
	for i, rec := range r.records {
		if rec.Fitness < r.records[best].Fitness {
			best = i
		}
	}
	return r.records[best], true
}
