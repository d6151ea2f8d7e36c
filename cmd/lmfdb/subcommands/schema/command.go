package schema

import (
	"context"
	"fmt"
	"log"

	"github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/common"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	upgrade, err := flarc.NewCommand(
		"Upgrade the database schema to the latest.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Upgrade),
		flarc.WithDescription(`
Upgrade the database schema to the latest.

For postgres, versioned SQL files are applied in order.
For mongo, indexes of knowls are created.
`),
	)
	if err != nil {
		return nil, err
	}
	version, err := flarc.NewCommand(
		"Show the version of the database schema.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Version),
	)
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manage the database schema.",
		struct{}{},
		flarc.WithSubcommand("upgrade", upgrade),
		flarc.WithSubcommand("version", version),
	)
}

func Upgrade(
	ctx context.Context,
	logger *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	sc := db.Schema().Database()
	before, err := sc.Version(ctx)
	if err != nil {
		return err
	}
	if err := sc.Upgrade(ctx); err != nil {
		return err
	}
	after, err := sc.Version(ctx)
	if err != nil {
		return err
	}
	logger.Printf("schema version: %d -> %d", before, after)
	_, err = fmt.Fprintln(cl.Stdout(), after)
	return err
}

func Version(
	ctx context.Context,
	_ *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	v, err := db.Schema().Database().Version(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cl.Stdout(), v)
	return err
}
