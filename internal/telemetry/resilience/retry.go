// Package resilience adapts the teacher's generic Retry/CircuitBreaker
// pair (libs/go/core/resilience) onto this service's own instrument
// prefix, reused here for SQL connection retry and for bounding
// cron-triggered re-execution rather than introducing a separate
// third-party breaker library.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/willwooten/thermidor/internal/telemetry"
)

// Retry executes fn up to attempts times with exponential backoff plus
// full jitter, stopping early on success or context cancellation.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		return zero, nil
	}

	meter := telemetry.Meter()
	attemptCounter, _ := meter.Int64Counter("thermidor_resilience_retry_attempts_total")
	successCounter, _ := meter.Int64Counter("thermidor_resilience_retry_success_total")
	failCounter, _ := meter.Int64Counter("thermidor_resilience_retry_fail_total")

	cur := delay
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		attemptCounter.Add(ctx, 1)
		if err == nil {
			successCounter.Add(ctx, 1)
			return v, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}

		if cur > 60*time.Second {
			cur = 60 * time.Second
		}
		sleep := time.Duration(rand.Int63n(int64(cur) + 1))
		select {
		case <-ctx.Done():
			failCounter.Add(ctx, 1)
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}
	failCounter.Add(ctx, 1)
	return zero, lastErr
}
