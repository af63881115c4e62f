package apierr

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds retry parameters for fixed-delay retry.
//
// All fields must be non-negative. Invalid values are normalized:
//   - MaxRetries < 0 becomes 0 (single attempt)
//   - Delay <= 0 becomes 1ms
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration
}

// normalize ensures all RetryConfig fields have valid values.
func (c *RetryConfig) normalize() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Delay <= 0 {
		c.Delay = time.Millisecond
	}
}

// RetryFixed executes fn up to 1+MaxRetries times, spacing attempts by the
// fixed Delay. It retries only if shouldRetry returns true for the error.
// Returns the result of the last attempt.
//
// Invalid RetryConfig values are normalized (see RetryConfig documentation).
func RetryFixed[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func() (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	cfg.normalize()

	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
	}

	return zero, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
