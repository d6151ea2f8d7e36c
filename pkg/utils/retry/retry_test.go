package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lmfdb/lmfdb/pkg/utils/retry"
)

func TestBlocking(t *testing.T) {
	ctx := context.Background()

	t.Run("it returns the first non-retry result", func(t *testing.T) {
		calls := 0
		actual, err := retry.Blocking(ctx, retry.StaticBackoff(time.Millisecond), func() (int, error) {
			calls += 1
			if calls < 3 {
				return 0, fmt.Errorf("%w: not yet", retry.ErrRetry)
			}
			return 42, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if actual != 42 || calls != 3 {
			t.Errorf("actual = %d, calls = %d", actual, calls)
		}
	})

	t.Run("it does not retry on other errors", func(t *testing.T) {
		expectedErr := errors.New("fake error")
		calls := 0
		_, err := retry.Blocking(ctx, retry.StaticBackoff(time.Millisecond), func() (int, error) {
			calls += 1
			return 0, expectedErr
		})
		if !errors.Is(err, expectedErr) || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("Limited gives up", func(t *testing.T) {
		calls := 0
		lastErr := errors.New("last")
		_, err := retry.Blocking(ctx, retry.Limited(2, retry.StaticBackoff(time.Millisecond)), func() (int, error) {
			calls += 1
			return 0, fmt.Errorf("%w: %w", retry.ErrRetry, lastErr)
		})
		if !errors.Is(err, retry.ErrExhausted) || !errors.Is(err, lastErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d", calls)
		}
	})

	t.Run("backoff stops when context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retry.Blocking(cctx, retry.StaticBackoff(time.Hour), func() (int, error) {
			return 0, retry.ErrRetry
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestExponentialBackoff(t *testing.T) {
	ctx := context.Background()
	b := retry.ExponentialBackoff(5*time.Millisecond, 2)

	durations := []time.Duration{}
	for i := 0; i < 3; i++ {
		before := time.Now()
		if err := b(ctx); err != nil {
			t.Fatal(err)
		}
		durations = append(durations, time.Since(before))
	}

	for i, min := range []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond} {
		if durations[i] < min {
			t.Errorf("wait #%d: %s < %s", i, durations[i], min)
		}
	}
}
