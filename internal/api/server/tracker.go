package server

import (
	"sync"
	"time"

	"blobscribe/internal/app/model"
)

// maxTrackedFailures bounds the in-memory failure list so a very long run
// cannot grow it without limit.
const maxTrackedFailures = 500

// Tracker accumulates live run progress for the dashboard. It implements
// the orchestrator's outcome sink and is safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	running     bool
	runID       string
	startedAt   time.Time
	finishedAt  time.Time
	total       int
	succeeded   int
	failed      int
	rateLimited int
	failures    []model.ProcessingOutcome
}

// Snapshot is a point-in-time copy of the tracker state.
type Snapshot struct {
	Running     bool                      `json:"running"`
	RunID       string                    `json:"run_id,omitempty"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	FinishedAt  *time.Time                `json:"finished_at,omitempty"`
	Total       int                       `json:"total"`
	Processed   int                       `json:"processed"`
	Succeeded   int                       `json:"succeeded"`
	Failed      int                       `json:"failed"`
	RateLimited int                       `json:"rate_limited"`
	SuccessRate float64                   `json:"success_rate"`
	Failures    []model.ProcessingOutcome `json:"-"`
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// BeginRun resets the tracker for a fresh run.
func (t *Tracker) BeginRun(runID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.runID = runID
	t.startedAt = time.Now()
	t.finishedAt = time.Time{}
	t.total = total
	t.succeeded = 0
	t.failed = 0
	t.rateLimited = 0
	t.failures = nil
}

// Consume records one item outcome. Called from worker goroutines.
func (t *Tracker) Consume(outcome model.ProcessingOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case outcome.Success:
		t.succeeded++
	case outcome.RateLimited():
		t.rateLimited++
	default:
		t.failed++
	}
	if !outcome.Success && len(t.failures) < maxTrackedFailures {
		t.failures = append(t.failures, outcome)
	}
}

// EndRun marks the run finished.
func (t *Tracker) EndRun() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.finishedAt = time.Now()
}

// Snapshot copies the current state for serialization.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Running:     t.running,
		RunID:       t.runID,
		Total:       t.total,
		Processed:   t.succeeded + t.failed + t.rateLimited,
		Succeeded:   t.succeeded,
		Failed:      t.failed,
		RateLimited: t.rateLimited,
		Failures:    append([]model.ProcessingOutcome(nil), t.failures...),
	}
	if processed := snap.Processed; processed > 0 {
		snap.SuccessRate = float64(t.succeeded) / float64(processed) * 100
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		snap.StartedAt = &started
	}
	if !t.finishedAt.IsZero() {
		finished := t.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}
