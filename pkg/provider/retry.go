package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the shared backoff policy applied around adapter calls.
// Only transient errors (ErrProviderUnavailable) are retried; auth, rate
// limit, and validation errors pass through untouched. Providers with
// contractual cooldown requirements get their own instance.
type RetryPolicy struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
}

func NewRetryPolicy(initial, max, maxElapsed time.Duration) RetryPolicy {
	return RetryPolicy{initialInterval: initial, maxInterval: max, maxElapsed: maxElapsed}
}

// DefaultRetryPolicy retries transient failures for up to ~30 seconds
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(500*time.Millisecond, 5*time.Second, 30*time.Second)
}

// Do runs op, retrying transient failures with exponential backoff until the
// policy's elapsed budget or the context expires
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	b.MaxInterval = p.maxInterval
	b.MaxElapsedTime = p.maxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}
