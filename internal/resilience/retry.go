package resilience

import (
	"context"
	"fmt"
	"time"
)

// Retry mirrors the teacher's generic retry helper: fixed attempt budget,
// exponential backoff between attempts, bail out immediately on a
// non-retryable error.
func Retry[T any](ctx context.Context, maxAttempts int, base, capDuration time.Duration, shouldRetry func(error) bool, operation func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == maxAttempts {
			return zero, lastErr
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(ExponentialBackoff(attempt, base, capDuration, 0.25)):
		}
	}

	return zero, fmt.Errorf("retry exhausted: %w", lastErr)
}
