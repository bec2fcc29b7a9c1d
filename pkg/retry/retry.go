// Package retry implements fixed-interval retry for transient failures.
// The policy is deliberately plain: no jitter, no exponential growth. The
// only thing retried in this system is the initial database connection,
// where a fixed cadence against a starting container is the documented
// behavior.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/geopop/ingest/pkg/geoperrors"
)

// Policy describes a bounded fixed-interval retry.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff is the fixed wait between consecutive attempts.
	Backoff time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. Errors are classified with
// geoperrors.IsRetryable, so fn is responsible for wrapping transient
// failures as connection or timeout errors. Each retry is logged.
func Do[T any](ctx context.Context, p Policy, log *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !geoperrors.IsRetryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		log.Warn("retrying after transient failure",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("backoff", p.Backoff),
			zap.Error(err))

		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return zero, geoperrors.Wrap(ctx.Err(), geoperrors.ErrorTypeTimeout, "retry interrupted")
		}
	}

	return zero, lastErr
}
