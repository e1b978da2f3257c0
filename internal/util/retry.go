package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryWithBackoff calls op until it succeeds, at most attempts times, waiting an exponentially
// growing delay (starting at initialDelay) in between. Errors classified as persistent device
// errors are not retried. Cancelling ctx aborts the wait between attempts.
func RetryWithBackoff[T any](ctx context.Context, attempts int, initialDelay time.Duration, op func() (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialDelay
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	return backoff.RetryWithData(func() (T, error) {
		result, err := op()
		if err != nil && IsPersistentDeviceError(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, b)
}
