package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay returns the pause after failed attempt n (0-indexed).
	Delay func(failedAttempt int) time.Duration
	// Retryable decides whether a failed attempt may be repeated. A nil
	// Retryable retries every error.
	Retryable func(err error) bool
}

// ExponentialDelay returns 2^n * base with no jitter.
func ExponentialDelay(base time.Duration) func(int) time.Duration {
	return func(n int) time.Duration {
		if n < 0 {
			n = 0
		}
		return base << uint(n)
	}
}

// Default is three attempts with one and two second pauses.
func Default() Policy {
	return Policy{MaxAttempts: 3, Delay: ExponentialDelay(time.Second)}
}

// Sleeper pauses between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exhausted is returned when every attempt failed with a retryable error.
type Exhausted struct {
	Attempts int
	Last     error
}

func (e *Exhausted) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *Exhausted) Unwrap() error { return e.Last }

// Stopped is returned when an attempt failed with a non-retryable error.
type Stopped struct {
	Attempt int
	Err     error
}

func (e *Stopped) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt+1, e.Err)
}

func (e *Stopped) Unwrap() error { return e.Err }

// Op is one attempt. attempt is 0-indexed.
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts. Attempts never overlap.
func Do[T any](ctx context.Context, policy Policy, sleeper Sleeper, op Op[T]) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		value, err := op(ctx, attempt)
		if err == nil {
			return value, nil
		}
		last = err

		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, &Stopped{Attempt: attempt, Err: err}
		}
		if attempt == attempts-1 {
			break
		}

		var delay time.Duration
		if policy.Delay != nil {
			delay = policy.Delay(attempt)
		}
		if sleepErr := sleeper.Sleep(ctx, delay); sleepErr != nil {
			return zero, &Stopped{Attempt: attempt, Err: sleepErr}
		}
	}

	return zero, &Exhausted{Attempts: attempts, Last: last}
}
