package filewatch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// UntilModifyContext returns a context canceled when one of the files
// (or something in one of the directories) is written, created, removed or renamed.
//
// lmfdbd uses it to quit on config changes, to be restarted with new one.
// The cause of cancellation (context.Cause) names the file and the operation.
//
// # Returns
//
// - context.Context: context watching files.
//
// - func(): stops watching, and cancels the context.
//
// - error: when some of paths can not be watched. Then context and func are nil.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("can not watch %s: %w", p, err)
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String()))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching files: %w", err))
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
