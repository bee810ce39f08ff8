package model

import "time"

// Status classifies the terminal state of one processed item.
type Status string

const (
	StatusDone        Status = "done"
	StatusFail        Status = "fail"
	StatusTimeout     Status = "timeout"
	StatusRateLimited Status = "rate_limited"
)

// ProcessingOutcome is the per-item result record produced by the pipeline.
type ProcessingOutcome struct {
	AudioPath      string    `json:"audio_path"`
	Success        bool      `json:"success"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	TranscriptPath string    `json:"transcript_path,omitempty"`
	FinishedAt     time.Time `json:"finished_at"`
}

// RateLimited reports whether the item was turned away by the remote
// service's submission throttle. Such items are retryable: the source
// object is never moved, so a later discovery pass picks them up again.
func (o ProcessingOutcome) RateLimited() bool {
	return o.Status == StatusRateLimited
}

// RunSummary aggregates the outcomes of one orchestrator run.
// Rate-limited items are tracked separately from failures because they are
// eligible for automatic retry.
type RunSummary struct {
	RunID       string              `json:"run_id"`
	Total       int                 `json:"total"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	RateLimited int                 `json:"rate_limited"`
	Failures    []ProcessingOutcome `json:"failures"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
}

// SuccessRate returns the percentage of processed items that succeeded.
func (s RunSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}
