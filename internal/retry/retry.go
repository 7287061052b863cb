// Package retry provides exponential backoff for operations that may fail
// transiently, such as establishing an SSH connection to a host that is
// rate-limiting new connections.
//
// The backoff duration follows InitialBackoff * 2^(attempt-1), optionally
// capped by MaxBackoff and spread by Jitter. Do honors context cancellation
// during backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the retry behavior for exponential backoff operations.
//
// MaxRetries is the total number of attempts; 1 means no retry at all.
type Config struct {
	// MaxRetries is the maximum number of attempts. Values below 1 are treated as 1.
	MaxRetries int

	// InitialBackoff is the base backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Zero means no cap.
	MaxBackoff time.Duration

	// Jitter adds linearly increasing randomness-free spread to the backoff (0.0 to 1.0).
	Jitter float64

	// OnRetry, if set, is called before each backoff with the attempt number
	// that just failed and its error.
	OnRetry func(attempt int, err error)
}

// ShouldRetryFunc determines if an error should trigger a retry.
// If nil is passed to Do, all errors are retried.
type ShouldRetryFunc func(error) bool

// Do executes fn with exponential backoff retry.
//
// It returns nil on the first success, the error itself when shouldRetry
// rejects it, ctx.Err() when canceled during backoff, and otherwise an error
// wrapping the last failure once all attempts are spent.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, lastErr)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(cfg, attempt, attempts)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}

		lastErr = err
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// calculateBackoff computes the backoff duration before the given attempt.
func calculateBackoff(cfg Config, attempt, attempts int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	backoff := time.Duration(multiplier * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * float64(attempt) / float64(attempts))
	}

	return backoff
}
