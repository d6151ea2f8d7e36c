package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lmfdb/lmfdb/pkg/loop"
)

// ErrSchemaMismatch is the error when the schema in database is not the one this program requires.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Compare tells whether the schema in database is the latest one.
//
// # Args
//
// - current: version in database.
//
// - latest: version this program knows.
func Compare(current int, latest int) error {
	switch {
	case current < latest:
		return fmt.Errorf("%w: schema is outdated: %d (in db) < %d (required)", ErrSchemaMismatch, current, latest)
	case latest < current:
		return fmt.Errorf("%w: schema is newer than this program: %d (in db) > %d (required)", ErrSchemaMismatch, current, latest)
	}
	return nil
}

// Watch implements SchemaInterface.Context with polling.
//
// check is called at first and then every interval.
// The returned context is canceled with the error as the cause when the first check fails,
// or a later check returns ErrSchemaMismatch. Other errors of later checks are logged and retried.
func Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)
	stop := func() { cancel(nil) }

	if err := check(cctx); err != nil {
		cancel(err)
		return cctx, stop
	}

	go loop.Start(cctx, 0, func(ctx context.Context, n int) (int, loop.Next) {
		if n == 0 {
			// checked above.
			return 1, loop.Continue(interval)
		}
		if err := check(ctx); errors.Is(err, ErrSchemaMismatch) {
			if ctx.Err() == nil {
				cancel(err)
			}
			return n + 1, loop.Break(err)
		} else if err != nil && ctx.Err() == nil {
			log.Printf("schema check failed, retry in %s: %s", interval, err)
		}
		return n + 1, loop.Continue(interval)
	})

	return cctx, stop
}
