package common

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig defines bounded retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first (default: 3)
	MaxAttempts int

	// BaseDelay is the backoff before the first retry (default: 2s)
	BaseDelay time.Duration

	// MaxDelay caps the backoff between retries (default: 60s)
	MaxDelay time.Duration
}

// NewDefaultRetryConfig returns a RetryConfig with sensible defaults for
// transient API failures.
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Backoff computes the delay before the given retry attempt (0-based) with
// full jitter: a uniform random duration up to the exponential ceiling.
// Jitter keeps concurrent retries from synchronizing against the same API.
func (c *RetryConfig) Backoff(attempt int) time.Duration {
	ceiling := c.BaseDelay
	for i := 0; i < attempt; i++ {
		ceiling *= 2
		if ceiling >= c.MaxDelay {
			ceiling = c.MaxDelay
			break
		}
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

// IsTransientError reports whether an error is worth retrying: rate limits,
// overload responses, timeouts, and transport-level failures.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "529") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporarily unavailable") ||
		strings.Contains(errStr, "status 500") ||
		strings.Contains(errStr, "status 502") ||
		strings.Contains(errStr, "status 503")
}

// Retry runs op up to config.MaxAttempts times, backing off between
// attempts. Non-transient errors (per retryable) stop immediately, as does
// context cancellation. Returns the last error when all attempts fail.
func Retry(ctx context.Context, config *RetryConfig, retryable func(error) bool, op func() error) error {
	if config == nil {
		config = NewDefaultRetryConfig()
	}
	if retryable == nil {
		retryable = IsTransientError
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(config.Backoff(attempt - 1)):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
