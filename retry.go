package qproc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/theapemachine/errnie"
)

// RetryPolicy defines how an executor retries a failing operation.
type RetryPolicy struct {
	MaxAttempts int
	Strategy    RetryStrategy
	Filter      func(error) bool
}

// RetryStrategy defines the delay before each retry.
type RetryStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay on every attempt, up to Max when set.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := eb.Initial * time.Duration(math.Pow(2, float64(attempt-1)))
	if eb.Max > 0 && delay > eb.Max {
		return eb.Max
	}
	return delay
}

func defaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 5,
		Strategy:    &ExponentialBackoff{Initial: 50 * time.Millisecond, Max: 2 * time.Second},
	}
}

/*
Do runs fn until it succeeds, the attempts run out, the filter rejects the
error or ctx is done. The last error is returned wrapped.
*/
func (rp *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := max(rp.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if rp.Filter != nil && !rp.Filter(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := time.Duration(0)
		if rp.Strategy != nil {
			delay = rp.Strategy.NextDelay(attempt)
		}
		errnie.Debug("attempt %d/%d failed: %v, retrying in %s", attempt, attempts, err, delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
