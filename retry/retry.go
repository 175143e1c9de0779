// Package retry runs fallible operations with a bounded number of attempts
// and a fixed (not exponential) delay between them.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/logger"
)

// Policy bounds a retried operation
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Retryable decides whether a failure may be attempted again.
	// Defaults to errors.IsTransient.
	Retryable func(error) bool

	// Logger receives one warn line per retried attempt and an error line on exhaustion.
	// Defaults to logger.Logger.
	Logger *zap.SugaredLogger
}

// Do calls op until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. The returned error carries label and the attempt count.
func Do[T any](ctx context.Context, label string, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = errors.IsTransient
	}
	log := policy.Logger
	if log == nil {
		log = logger.Logger
	}

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		annotated := errors.Wrapf(err, "%s (attempt %d/%d)", label, attempt, maxAttempts)

		if !retryable(err) {
			return zero, annotated
		}

		if attempt >= maxAttempts {
			log.Errorw("All attempts exhausted",
				logger.FieldLabel, label,
				logger.FieldAttempt, attempt,
				logger.FieldMaxAttempts, maxAttempts,
				logger.FieldError, err.Error(),
			)
			return zero, annotated
		}

		log.Warnw("Attempt failed, retrying",
			logger.FieldLabel, label,
			logger.FieldAttempt, attempt,
			logger.FieldMaxAttempts, maxAttempts,
			"delay_ms", policy.Delay.Milliseconds(),
			logger.FieldError, err.Error(),
		)

		if err := sleep(ctx, policy.Delay); err != nil {
			return zero, errors.Wrapf(err, "%s: interrupted after attempt %d", label, attempt)
		}
	}
}

// sleep waits d on a timer, returning early if ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
