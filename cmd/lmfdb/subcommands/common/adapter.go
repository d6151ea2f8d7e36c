package common

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lmfdb/lmfdb/pkg/configs/server"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb"
	"github.com/youta-t/flarc"
)

type TaskWithConfig[T any] func(
	ctx context.Context,
	logger *log.Logger,
	conf *server.ServerConfig,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTaskWithConfig loads the config file named by CommonFlags before task.
func NewTaskWithConfig[T any](task TaskWithConfig[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		conf, err := server.LoadServerConfig(commonFlag.Config)
		if err != nil {
			return fmt.Errorf("%w: can not read config %s: %w", flarc.ErrUsage, commonFlag.Config, err)
		}
		return task(ctx, logger, conf, cl, newpos)
	}
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[T],
	params []any,
) error

// Connector opens the database in the config.
type Connector func(context.Context, *server.ServerConfig) (lmfdb.LMFDB, error)

func connect(ctx context.Context, conf *server.ServerConfig) (lmfdb.LMFDB, error) {
	return lmfdb.New(ctx, conf)
}

// NewTask connects to the database before task, and closes it after.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithConnector(connect, task)
}

func NewTaskWithConnector[T any](connect Connector, task Task[T]) flarc.Task[T] {
	return NewTaskWithConfig(func(
		ctx context.Context,
		logger *log.Logger,
		conf *server.ServerConfig,
		cl flarc.Commandline[T],
		params []any,
	) error {
		db, err := connect(ctx, conf)
		if err != nil {
			return fmt.Errorf("can not connect to database: %w", err)
		}
		defer func() {
			if err := db.Close(context.Background()); err != nil {
				logger.Printf("error on closing database: %s", err)
			}
		}()
		return task(ctx, logger, db, cl, params)
	})
}
