package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig tunes Retry's backoff schedule.
type RetryConfig struct {
	BaseInterval   time.Duration
	MaxInterval    time.Duration
	MaxElapsedTime time.Duration
}

// DefaultRetryConfig returns exponential backoff with a 1s base and a
// configurable cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseInterval:   time.Second,
		MaxInterval:    30 * time.Second,
		MaxElapsedTime: 2 * time.Minute,
	}
}

// Retry runs fn, retrying with exponential backoff and jitter while
// classify(err) reports the error retryable. Non-retryable errors
// short-circuit immediately without retrying.
func Retry(ctx context.Context, cfg RetryConfig, classify func(error) bool, fn func() error) error {
	op := func() (struct{}, error) {
		if err := fn(); err != nil {
			if classify != nil && !classify(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseInterval
	b.MaxInterval = cfg.MaxInterval

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(cfg.MaxElapsedTime),
	)
	return err
}

// IsRetryable classifies an HTTP status code as retryable: 5xx responses are
// retried, everything else short-circuits.
func IsRetryable(statusCode int) bool {
	return statusCode >= 500
}
