package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"blobscribe/internal/app/errors"
	"blobscribe/internal/app/model"
	"blobscribe/internal/app/transcript"
	"blobscribe/internal/app/voicegain"
)

// RemoteClient is the transcription API surface the pipeline needs.
type RemoteClient interface {
	Submit(ctx context.Context, audioURL string) (*voicegain.Session, error)
	Poll(ctx context.Context, session *voicegain.Session, maxIterations int, delay time.Duration) (string, voicegain.Outcome, error)
	FetchTranscript(ctx context.Context, session *voicegain.Session) (model.RawTranscript, error)
}

// Limiter gates submissions against the remote service's hourly cap.
type Limiter interface {
	Admit(ctx context.Context) error
}

// ArtifactWriter persists transcript artifacts and archives sources. It is
// an injected strategy so output layout changes never require subclassing
// the pipeline.
type ArtifactWriter interface {
	Persist(ctx context.Context, formatted string, raw model.RawTranscript, identifier string) (string, error)
	Archive(ctx context.Context, sourcePath string) (string, error)
}

// URLResolver produces an externally reachable URL for a work item when the
// item does not already carry one. Implementations typically presign
// against the blob store.
type URLResolver interface {
	ResolveURL(ctx context.Context, item model.WorkItem) (string, error)
}

// OutcomeSink consumes per-item outcomes as they complete. Sinks are
// called from worker goroutines and must be safe for concurrent use.
type OutcomeSink interface {
	Consume(outcome model.ProcessingOutcome)
}

// Config tunes batch scheduling and per-item polling.
type Config struct {
	// BatchSize is the target number of items processed concurrently per
	// batch. The adaptive scheduler never grows past it.
	BatchSize int
	// MinBatchSize is the floor the scheduler never shrinks below.
	MinBatchSize int
	// InterBatchPause separates consecutive batches so the remote service
	// can recover.
	InterBatchPause time.Duration
	// PollIterations and PollDelay bound per-item status polling.
	PollIterations int
	PollDelay      time.Duration
	// MaxWorkers caps concurrency inside a batch. Zero means one worker
	// per batch item.
	MaxWorkers int
	// AudioBaseURL constructs item URLs when no resolver applies.
	AudioBaseURL string
	// AccessToken is appended as a query string to constructed URLs
	// (SAS-equivalent read token).
	AccessToken string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.MinBatchSize <= 0 {
		c.MinBatchSize = 10
	}
	if c.MinBatchSize > c.BatchSize {
		c.MinBatchSize = c.BatchSize
	}
	if c.InterBatchPause <= 0 {
		c.InterBatchPause = 10 * time.Second
	}
	if c.PollIterations <= 0 {
		c.PollIterations = voicegain.DefaultPollIterations
	}
	if c.PollDelay <= 0 {
		c.PollDelay = voicegain.DefaultPollDelay
	}
	return c
}

// Orchestrator drives the end-to-end per-item workflow and schedules items
// in strictly sequential, adaptively sized batches.
type Orchestrator struct {
	client    RemoteClient
	limiter   Limiter
	formatter transcript.Formatter
	writer    ArtifactWriter
	resolver  URLResolver
	sinks     []OutcomeSink
	metrics   *Metrics
	config    Config
	logger    *zap.Logger

	sleep func(context.Context, time.Duration)
	now   func() time.Time
}

// New assembles an Orchestrator. resolver and metrics may be nil; sinks
// are optional.
func New(
	client RemoteClient,
	limiter Limiter,
	formatter transcript.Formatter,
	writer ArtifactWriter,
	resolver URLResolver,
	config Config,
	metrics *Metrics,
	logger *zap.Logger,
	sinks ...OutcomeSink,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:    client,
		limiter:   limiter,
		formatter: formatter,
		writer:    writer,
		resolver:  resolver,
		sinks:     sinks,
		metrics:   metrics,
		config:    config.withDefaults(),
		logger:    logger,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// Run processes all items and returns the aggregated summary. Items run
// concurrently within a batch; batch N+1 never starts before batch N fully
// drains. The batch size adapts to the observed rate-limited fraction:
// above 5% it shrinks by a quarter, at exactly zero it grows by a tenth,
// bounded by MinBatchSize and the configured target.
func (o *Orchestrator) Run(ctx context.Context, items []model.WorkItem) (model.RunSummary, error) {
	summary := model.RunSummary{
		RunID:     uuid.New().String(),
		Total:     len(items),
		StartedAt: o.now(),
	}

	target := o.config.BatchSize
	current := target
	o.metrics.setBatchSize(current)

	batchNum := 0
	for start := 0; start < len(items); {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = o.now()
			return summary, err
		}

		end := start + current
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		batchNum++

		o.logger.Info("processing batch",
			zap.Int("batch", batchNum),
			zap.Int("batch_size", len(batch)),
			zap.Int("done", start),
			zap.Int("total", len(items)))

		outcomes := o.runBatch(ctx, batch)
		o.aggregate(&summary, outcomes)

		rateLimited := lo.CountBy(outcomes, model.ProcessingOutcome.RateLimited)
		fraction := float64(rateLimited) / float64(len(batch))
		current = o.nextBatchSize(current, target, fraction)
		o.metrics.setBatchSize(current)

		o.logger.Info("batch complete",
			zap.Int("batch", batchNum),
			zap.Int("rate_limited", rateLimited),
			zap.Int("next_batch_size", current))

		start = end
		if start < len(items) {
			o.sleep(ctx, o.config.InterBatchPause)
		}
	}

	summary.FinishedAt = o.now()
	o.logger.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("rate_limited", summary.RateLimited))
	return summary, nil
}

// runBatch fans the batch out to one worker per item and waits for all of
// them. Worker panics become failure outcomes; nothing a worker does can
// abort its siblings.
func (o *Orchestrator) runBatch(ctx context.Context, batch []model.WorkItem) []model.ProcessingOutcome {
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make([]model.ProcessingOutcome, 0, len(batch))

	workers := len(batch)
	if o.config.MaxWorkers > 0 && o.config.MaxWorkers < workers {
		workers = o.config.MaxWorkers
	}
	slots := make(chan struct{}, workers)

	for _, item := range batch {
		wg.Add(1)
		go func(item model.WorkItem) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()

			started := o.now()
			outcome := o.processItemSafe(ctx, item)
			outcome.FinishedAt = o.now()

			o.metrics.observeOutcome(outcome, outcome.FinishedAt.Sub(started))
			for _, sink := range o.sinks {
				sink.Consume(outcome)
			}

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	return outcomes
}

func (o *Orchestrator) processItemSafe(ctx context.Context, item model.WorkItem) (outcome model.ProcessingOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic",
				zap.String("audio_path", item.Path),
				zap.Any("panic", r))
			outcome = model.ProcessingOutcome{
				AudioPath: item.Path,
				Status:    model.StatusFail,
				Error:     fmt.Sprintf("pipeline panic: %v", r),
			}
		}
	}()
	return o.processItem(ctx, item)
}

// processItem walks one work item through the full workflow:
// resolve URL, admit, submit, poll, fetch, format, persist, archive.
func (o *Orchestrator) processItem(ctx context.Context, item model.WorkItem) model.ProcessingOutcome {
	outcome := model.ProcessingOutcome{
		AudioPath: item.Path,
		Status:    model.StatusFail,
	}

	audioURL, err := o.resolveURL(ctx, item)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	if err := o.limiter.Admit(ctx); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	session, err := o.client.Submit(ctx, audioURL)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if session == nil {
		// Rate-limit retries exhausted. The item was never submitted and
		// the source is left in place for a later discovery pass.
		outcome.Status = model.StatusRateLimited
		o.logger.Warn("submission rate limited, item deferred",
			zap.String("audio_path", item.Path))
		return outcome
	}

	_, pollOutcome, err := o.client.Poll(ctx, session, o.config.PollIterations, o.config.PollDelay)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	switch pollOutcome {
	case voicegain.OutcomeFail:
		outcome.Error = "transcription failed"
		o.logger.Error("transcription fail", zap.String("audio_path", item.Path))
		return outcome
	case voicegain.OutcomeTimeout:
		outcome.Status = model.StatusTimeout
		outcome.Error = "transcription timeout"
		o.logger.Error("transcription timeout", zap.String("audio_path", item.Path))
		return outcome
	}

	raw, err := o.client.FetchTranscript(ctx, session)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	formatted := o.formatter.Format(raw)

	artifactPath, err := o.writer.Persist(ctx, formatted, raw, item.Path)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.TranscriptPath = artifactPath

	// Archival failure is a warning, never a failure: the transcript is
	// already saved.
	if _, err := o.writer.Archive(ctx, item.Path); err != nil {
		o.logger.Warn("archive failed, transcript saved anyway",
			zap.String("audio_path", item.Path),
			zap.Error(err))
	}

	outcome.Success = true
	outcome.Status = model.StatusDone
	return outcome
}

// resolveURL produces the externally reachable URL for an item. Explicit
// URLs win, then the injected resolver, then base-URL construction with
// the optional access token. Having none of these is a configuration
// error scoped to this item only.
func (o *Orchestrator) resolveURL(ctx context.Context, item model.WorkItem) (string, error) {
	if item.ResolvedURL() {
		return withAccessToken(item.AudioURL, o.config.AccessToken), nil
	}
	if item.Path == "" {
		return "", errors.RequiredField("audiopath")
	}

	if o.resolver != nil {
		url, err := o.resolver.ResolveURL(ctx, item)
		if err != nil {
			return "", errors.Wrapf(err, "failed to resolve URL for %s", item.Path)
		}
		return url, nil
	}

	if o.config.AudioBaseURL == "" {
		return "", errors.ErrNoAudioURL
	}
	url := strings.TrimRight(o.config.AudioBaseURL, "/") + "/" + strings.TrimLeft(item.Path, "/")
	return withAccessToken(url, o.config.AccessToken), nil
}

func withAccessToken(url, token string) string {
	if token == "" {
		return url
	}
	separator := "?"
	if strings.Contains(url, "?") {
		separator = "&"
	}
	return url + separator + token
}

// nextBatchSize hill-climbs toward the largest batch the remote service
// tolerates without sustained 429s.
func (o *Orchestrator) nextBatchSize(current, target int, rateLimitedFraction float64) int {
	switch {
	case rateLimitedFraction > 0.05:
		next := current * 3 / 4
		if next < o.config.MinBatchSize {
			next = o.config.MinBatchSize
		}
		return next
	case rateLimitedFraction == 0:
		next := current + current/10
		if next == current {
			next = current + 1
		}
		if next > target {
			next = target
		}
		return next
	default:
		return current
	}
}

func (o *Orchestrator) aggregate(summary *model.RunSummary, outcomes []model.ProcessingOutcome) {
	for _, outcome := range outcomes {
		switch {
		case outcome.Success:
			summary.Succeeded++
		case outcome.RateLimited():
			// Tracked separately from failures: rate-limited items are
			// retryable and their sources were never moved.
			summary.RateLimited++
			summary.Failures = append(summary.Failures, outcome)
		default:
			summary.Failed++
			summary.Failures = append(summary.Failures, outcome)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
