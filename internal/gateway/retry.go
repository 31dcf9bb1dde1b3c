// Package gateway wraps the local health gateway's REST API. It provides an
// [Adapter] with one read method per health-data category, a short
// exponential-backoff [Retry] helper, and conversion between the gateway's
// JSON representation and the raw record types in [model].
package gateway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// The gateway runs on the same network segment as this process, so failures
// are either instant (bridge not running) or clear quickly (bridge
// restarting). Short delays with a tight cap beat long waits here.
const (
	// defaultMaxAttempts is the number of tries before Retry gives up.
	defaultMaxAttempts = 3

	// baseDelay is the starting backoff interval (before jitter).
	baseDelay = 200 * time.Millisecond

	// maxDelay caps the backoff interval.
	maxDelay = 2 * time.Second
)

// Retry executes fn up to maxAttempts times with exponential backoff and
// jitter. It returns nil on the first successful call, or a wrapped error
// containing the last failure if all attempts are exhausted.
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoffDelay(attempt)):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// backoffDelay doubles the capped base delay per attempt and draws the
// result uniformly from the upper half of the band, so concurrent retries
// against a restarting bridge spread out instead of stampeding it.
func backoffDelay(attempt int) time.Duration {
	delay := min(baseDelay<<attempt, maxDelay)
	return delay/2 + rand.N(delay/2)
}
