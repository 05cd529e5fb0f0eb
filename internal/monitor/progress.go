package monitor

import (
	"sort"
	"sync"
	"time"
)

// SpaceStatus is the lifecycle state of one search space in a sweep
type SpaceStatus string

const (
	StatusPending SpaceStatus = "pending"
	StatusRunning SpaceStatus = "running"
	StatusDone    SpaceStatus = "done"
)

// SpaceProgress is a snapshot of the sweep over one search space
type SpaceProgress struct {
	SearchSpace   int         `json:"search_space"`
	Status        SpaceStatus `json:"status"`
	RunID         string      `json:"run_id,omitempty"`
	RunIndex      int         `json:"run_index"`
	RunsCompleted int         `json:"runs_completed"`
	Generation    int         `json:"generation"`
	BestScore     float64     `json:"best_score"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Progress tracks per-search-space progress. Safe for concurrent use.
type Progress struct {
	mu     sync.RWMutex
	spaces map[int]*SpaceProgress
}

// NewProgress creates an empty progress store
func NewProgress() *Progress {
	return &Progress{spaces: make(map[int]*SpaceProgress)}
}

func (p *Progress) entry(space int) *SpaceProgress {
	sp, ok := p.spaces[space]
	if !ok {
		sp = &SpaceProgress{SearchSpace: space, Status: StatusPending}
		p.spaces[space] = sp
	}
	return sp
}

// Register adds spaces in the pending state
func (p *Progress) Register(spaces ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range spaces {
		p.entry(s).UpdatedAt = time.Now().UTC()
	}
}

// StartRun marks a run of space as in progress
func (p *Progress) StartRun(space, runIndex int, runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp := p.entry(space)
	sp.Status = StatusRunning
	sp.RunIndex = runIndex
	sp.RunID = runID
	sp.Generation = 0
	sp.BestScore = 0
	sp.UpdatedAt = time.Now().UTC()
}

// Update records the latest generation and best score of the current run
func (p *Progress) Update(space, generation int, best float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp := p.entry(space)
	sp.Generation = generation
	sp.BestScore = best
	sp.UpdatedAt = time.Now().UTC()
}

// FinishRun counts a completed run
func (p *Progress) FinishRun(space int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp := p.entry(space)
	sp.RunsCompleted++
	sp.UpdatedAt = time.Now().UTC()
}

// Done marks every run of space as finished
func (p *Progress) Done(space int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp := p.entry(space)
	sp.Status = StatusDone
	sp.UpdatedAt = time.Now().UTC()
}

// Snapshot returns copies of all entries ordered by search space
func (p *Progress) Snapshot() []SpaceProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]SpaceProgress, 0, len(p.spaces))
	for _, sp := range p.spaces {
		out = append(out, *sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SearchSpace < out[j].SearchSpace })
	return out
}

// Get returns the entry for space
func (p *Progress) Get(space int) (SpaceProgress, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sp, ok := p.spaces[space]
	if !ok {
		return SpaceProgress{}, false
	}
	return *sp, true
}
