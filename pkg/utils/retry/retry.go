package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Returning ErrRetry (or an error wrapping it) from a task passed to Blocking
// means "try again".
var ErrRetry = errors.New("retry")

// Backoff waits before the next try.
//
// When it returns error, retrying is given up.
type Backoff func(context.Context) error

var StaticBackoff = func(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

var ExponentialBackoff = func(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			i := float64(interval) * r
			interval = time.Duration(int64(i))
			return nil
		}
	}
}

// ErrExhausted is returned by Limited Backoff when it has waited enough.
var ErrExhausted = errors.New("retry count exhausted")

// Limited makes b give up after waiting max times.
func Limited(max int, b Backoff) Backoff {
	count := 0
	return func(ctx context.Context) error {
		if max <= count {
			return fmt.Errorf("%w (%d times)", ErrExhausted, max)
		}
		count++
		return b(ctx)
	}
}

// Blocking calls f until it returns non-ErrRetry result, waiting b between tries.
//
// The first call is made immediately.
// When b gives up, the error of the last try is joined to the error of b.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		last, err := f()
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}
		if berr := b(ctx); berr != nil {
			return last, errors.Join(berr, err)
		}
	}
}
