package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSleeper struct {
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

func TestExponentialDelay(t *testing.T) {
	t.Parallel()

	delay := ExponentialDelay(time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for n, expected := range want {
		if got := delay(n); got != expected {
			t.Fatalf("delay(%d) = %s, want %s", n, got, expected)
		}
	}
}

func TestDoRetriesWithBackoffAndNoTrailingSleep(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	calls := 0
	_, err := Do(context.Background(), Default(), sleeper, func(context.Context, int) (string, error) {
		calls++
		return "", errors.New("overloaded")
	})

	var exhausted *Exhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected Exhausted, got %v", err)
	}
	if exhausted.Attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts, got attempts=%d calls=%d", exhausted.Attempts, calls)
	}
	if len(sleeper.delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %v", sleeper.delays)
	}
	if sleeper.delays[0] < time.Second || sleeper.delays[1] < 2*time.Second {
		t.Fatalf("unexpected delays: %v", sleeper.delays)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	t.Parallel()

	fatal := errors.New("invalid argument")
	policy := Default()
	policy.Retryable = func(err error) bool { return !errors.Is(err, fatal) }
	sleeper := &recordingSleeper{}
	calls := 0

	_, err := Do(context.Background(), policy, sleeper, func(context.Context, int) (int, error) {
		calls++
		return 0, fatal
	})

	var stopped *Stopped
	if !errors.As(err, &stopped) || !errors.Is(err, fatal) {
		t.Fatalf("expected Stopped wrapping fatal, got %v", err)
	}
	if calls != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("expected exactly one attempt and no sleep, calls=%d sleeps=%v", calls, sleeper.delays)
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	got, err := Do(context.Background(), Default(), sleeper, func(_ context.Context, attempt int) (int, error) {
		if attempt == 0 {
			return 0, errors.New("transient")
		}
		return attempt, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected value from second attempt, got %d", got)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != time.Second {
		t.Fatalf("unexpected delays: %v", sleeper.delays)
	}
}

func TestDoSleepCancellation(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{err: context.Canceled}
	calls := 0
	_, err := Do(context.Background(), Default(), sleeper, func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	_, _ = Do(context.Background(), Policy{}, &recordingSleeper{}, func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}

func TestTimerSleeperHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (TimerSleeper{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
