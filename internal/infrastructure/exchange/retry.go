package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

const maxAttempts = 5

// retry runs fn up to maxAttempts times with exponential backoff between
// attempts. Every exchange call goes through here, so transient network
// failures stay invisible to the core: callers only ever see a terminal
// failure.
func retry[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(b.Duration()):
		}
	}
	return zero, fmt.Errorf("%s: %d attempts failed: %w", op, maxAttempts, lastErr)
}
