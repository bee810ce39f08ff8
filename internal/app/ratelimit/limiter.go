package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxPerWindow is the submission cap the transcription service
	// tolerates per trailing hour.
	DefaultMaxPerWindow = 3750
	// DefaultWindow is the trailing interval the cap applies to.
	DefaultWindow = time.Hour
)

// Limiter enforces a sliding-window cap on submissions plus a minimum
// spacing between consecutive submissions. One Limiter instance is shared
// by every pipeline in a run; Admit serializes the check-and-record under a
// single mutex. A Limiter never fails, it only delays.
type Limiter struct {
	mu          sync.Mutex
	submissions []time.Time

	maxPerWindow int
	window       time.Duration
	minSpacing   time.Duration

	logger *zap.Logger

	// clock hooks, replaced in tests
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// New creates a Limiter admitting at most maxPerWindow submissions in any
// trailing window, with spacing of at least max(1s, window/cap) between
// submissions to smooth bursts.
func New(maxPerWindow int, window time.Duration, logger *zap.Logger) *Limiter {
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	minSpacing := window / time.Duration(maxPerWindow)
	if minSpacing < time.Second {
		minSpacing = time.Second
	}

	return &Limiter{
		maxPerWindow: maxPerWindow,
		window:       window,
		minSpacing:   minSpacing,
		logger:       logger,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Admit blocks until one more submission is safe to issue, then records it.
// The cap guarantee: across any trailing window, recorded submissions never
// exceed maxPerWindow at the moment of admission.
func (l *Limiter) Admit(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.evictLocked(now)

		if len(l.submissions) < l.maxPerWindow {
			l.submissions = append(l.submissions, now)
			l.mu.Unlock()
			// Spacing delay happens after recording so concurrent callers
			// queue behind the window, not behind each other's sleeps.
			l.sleep(ctx, l.minSpacing)
			return ctx.Err()
		}

		oldest := l.submissions[0]
		wait := l.window - now.Sub(oldest) + time.Second
		l.mu.Unlock()

		if wait < 0 {
			continue
		}
		l.logger.Info("submission rate limit reached, waiting",
			zap.Int("in_window", l.maxPerWindow),
			zap.Duration("wait", wait))
		l.sleep(ctx, wait)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// InWindow returns the number of submissions currently inside the window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now())
	return len(l.submissions)
}

// evictLocked drops timestamps older than the window. Submissions are
// appended in time order, so the slice stays sorted and the first element
// is always the oldest.
func (l *Limiter) evictLocked(now time.Time) {
	cut := 0
	for cut < len(l.submissions) && now.Sub(l.submissions[cut]) >= l.window {
		cut++
	}
	if cut > 0 {
		l.submissions = append(l.submissions[:0], l.submissions[cut:]...)
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
