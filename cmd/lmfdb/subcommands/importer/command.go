package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/common"
	kflag "github.com/lmfdb/lmfdb/pkg/commandline/flag"
	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb"
	"github.com/lmfdb/lmfdb/pkg/importer"
	"github.com/lmfdb/lmfdb/pkg/importer/formats"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Format     string                `flag:"format" alias:"f" metavar:"allcurves|jsonl" help:"format of input files"`
	Collection string                `flag:"collection" metavar:"NAME" help:"collection which records are imported into. required"`
	OnConflict *kflag.ConflictPolicy `flag:"on-conflict" metavar:"raise|overwrite|keep-first" help:"what to do when a field differs from the stored one"`
	LabelKey   string                `flag:"label-key" metavar:"FIELD" help:"field holding labels (jsonl only)"`
	Index      *kflag.Argslice       `flag:"index" metavar:"FIELD,..." help:"fields to be indexed before importing. Repeatable"`
}

const ARG_FILE = "FILE"

// ErrRejected is returned when some lines are rejected.
var ErrRejected = errors.New("some lines are rejected")

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Import label-keyed records into a collection.",
		Flags{
			Format:     formats.AllCurves,
			OnConflict: new(kflag.ConflictPolicy),
			LabelKey:   formats.DefaultKey,
			Index:      &kflag.Argslice{},
		},
		flarc.Args{
			{
				Name: ARG_FILE, Required: true, Repeatable: true,
				Help: `input files. "-" reads stdin`,
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Import label-keyed records into a collection.

Each line of input files is a record. A record is merged into the stored one
with the same label: fields only in stored one are kept, new fields are added,
and fields with different values are handled by --on-conflict.

  - raise (default): abort the import.
  - overwrite: take the value in the input.
  - keep-first: keep the stored value.

Importing the same files twice changes nothing.
Malformed lines are reported and skipped, and then the command fails after all files are imported.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	flags := cl.Flags()
	if flags.Collection == "" {
		return fmt.Errorf("%w: --collection is required", flarc.ErrUsage)
	}
	if err := domain.ValidateRecordKey(flags.Collection, "-"); err != nil {
		return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
	}
	parser, err := formats.Get(flags.Format, flags.LabelKey)
	if err != nil {
		return fmt.Errorf("%w: --format: %w", flarc.ErrUsage, err)
	}

	records := db.Record().Database()
	if flags.Index != nil && 0 < len(*flags.Index) {
		logger.Printf("ensure index on %s: %s", flags.Collection, strings.Join(*flags.Index, ", "))
		if err := records.EnsureIndex(ctx, flags.Collection, (*flags.Index)...); err != nil {
			return err
		}
	}

	imp := importer.New(records, flags.OnConflict.Policy(), importer.WithLogger(logger))

	total := importer.Summary{}
	for _, file := range cl.Args()[ARG_FILE] {
		summary, err := importFile(ctx, imp, flags.Collection, file, parser, cl.Stdin())
		total.Add(summary)
		if err != nil {
			logger.Printf("%s: %s", file, summary)
			return err
		}
		logger.Printf("%s: %s", file, summary)
	}

	fmt.Fprintln(cl.Stdout(), total)
	if 0 < len(total.Rejections) {
		return fmt.Errorf("%w: %d lines", ErrRejected, len(total.Rejections))
	}
	return nil
}

func importFile(
	ctx context.Context,
	imp *importer.Importer,
	collection string,
	file string,
	parser importer.Parser,
	stdin io.Reader,
) (importer.Summary, error) {
	if file == "-" {
		return imp.Run(ctx, collection, "<stdin>", parser, stdin)
	}
	f, err := os.Open(file)
	if err != nil {
		return importer.Summary{}, err
	}
	defer f.Close()
	return imp.Run(ctx, collection, file, parser, f)
}
