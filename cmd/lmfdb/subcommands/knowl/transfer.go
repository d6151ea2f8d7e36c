package knowl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/common"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb"
	"github.com/lmfdb/lmfdb/pkg/utils"
	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"
)

const ARG_FILE = "FILE"

type DumpFlags struct {
	Category string `flag:"category" metavar:"CATEGORY" help:"dump Knowls only in the category, like ec"`
}

func NewDump() (flarc.Command, error) {
	return flarc.NewCommand(
		"Dump Knowls into a YAML file.",
		DumpFlags{},
		flarc.Args{
			{Name: ARG_FILE, Required: true, Help: `file to be written. "-" writes stdout`},
		},
		common.NewTask(Dump),
	)
}

func Dump(
	ctx context.Context,
	logger *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[DumpFlags],
	_ []any,
) error {
	knowls, err := db.Knowl().Database().Find(ctx, kdb.KnowlFilter{Category: cl.Flags().Category})
	if err != nil {
		return err
	}

	file := cl.Args()[ARG_FILE][0]
	w, err := create(file, cl.Stdout())
	if err != nil {
		return err
	}
	defer w.Close()

	if err := encode(w, utils.Map(knowls, ComposeDocument)); err != nil {
		return err
	}
	logger.Printf("dumped %d knowls", len(knowls))
	return nil
}

func NewLoad() (flarc.Command, error) {
	return flarc.NewCommand(
		"Load Knowls from a YAML file made by dump.",
		struct{}{},
		flarc.Args{
			{Name: ARG_FILE, Required: true, Help: `file to be read. "-" reads stdin`},
		},
		common.NewTask(Load),
		flarc.WithDescription(`
Load Knowls from a YAML file made by dump.

Knowls in the file overwrite stored ones with the same ids, keeping their authors and timestamps.
All Knowls are validated before any of them are written.
`),
	)
}

func Load(
	ctx context.Context,
	logger *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	file := cl.Args()[ARG_FILE][0]
	r, err := open(file, cl.Stdin())
	if err != nil {
		return err
	}
	defer r.Close()

	docs := []Document{}
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", file, err)
	}
	knowls, err := utils.MapUntilError(docs, Document.Knowl)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	store := db.Knowl().Database()
	for _, k := range knowls {
		if _, err := store.Put(ctx, k, nil); err != nil {
			return fmt.Errorf("knowl %s: %w", k.Id, err)
		}
	}
	logger.Printf("loaded %d knowls", len(knowls))
	return nil
}
