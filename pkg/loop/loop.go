// Package loop runs periodic housekeeping tasks, like purging expired entries.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task.
//
// Zero value continues immediately.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err may be nil.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task receives the value returned last time.
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task repeatedly, as long as it returns Continue and ctx is not done.
//
// task is called with init first, and with what it returned after that.
//
//	Start(ctx, pool, func(_ context.Context, p *Pool) (*Pool, Next) {
//		p.Purge()
//		return p, Continue(time.Minute)
//	})
//
// # Returns
//
// - T: the value task returned at last, or init if task is never called.
//
// - error: the error of Break, or ctx.Err() when ctx is done.
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	value := init
	for {
		v, n := task(ctx, value)
		if n.err != nil {
			return v, n.err
		} else if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}
