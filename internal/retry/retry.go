package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// SleepFunc waits for the given duration or until the context is done.
// Injectable so tests run without wall-clock sleeps.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier executes operations with bounded exponential backoff.
type Retrier struct {
	cfg       Config
	retryable Classifier
	sleep     SleepFunc
	logger    *slog.Logger
}

// New builds a Retrier. A nil classifier retries every error.
func New(cfg Config, classifier Classifier, logger *slog.Logger) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Factor <= 1 {
		cfg.Factor = 2
	}
	return &Retrier{
		cfg:       cfg,
		retryable: classifier,
		sleep:     Wait,
		logger:    logger,
	}
}

// WithSleep overrides the backoff wait, for tests.
func (r *Retrier) WithSleep(sleep SleepFunc) *Retrier {
	if sleep != nil {
		r.sleep = sleep
	}
	return r
}

// Do runs op until it succeeds, exhausts attempts, hits a non-retryable
// error, or the context is cancelled during backoff.
func (r *Retrier) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				r.debug("operation recovered", "attempt", attempt)
			}
			return nil
		}

		retryable := r.retryable == nil || r.retryable(lastErr)
		r.debug("attempt failed",
			"attempt", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"retryable", retryable,
			"error", lastErr)

		if attempt == r.cfg.MaxAttempts || !retryable {
			break
		}

		delay := r.Delay(attempt)
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return fmt.Errorf("after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

// Delay computes the backoff before the next attempt: BaseDelay scaled by
// Factor^(attempt-1), capped at MaxDelay.
func (r *Retrier) Delay(attempt int) time.Duration {
	delay := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Factor, float64(attempt-1))
	if r.cfg.MaxDelay > 0 && delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}
	return time.Duration(delay)
}

func (r *Retrier) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// Wait blocks for d or until the context is done, whichever comes first.
// It is the default SleepFunc and the shared pause primitive for callers
// that pace work between operations.
func Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
