package knowl

import (
	"context"
	"fmt"
	"log"

	"github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/common"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb"
	"github.com/youta-t/flarc"
)

const ARG_ID = "KNOWL_ID"

func NewShow() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show a Knowl as YAML.",
		struct{}{},
		flarc.Args{
			{Name: ARG_ID, Required: true, Help: "id of the Knowl, like ec.q.torsion_order"},
		},
		common.NewTask(Show),
	)
}

func Show(
	ctx context.Context,
	_ *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	id := cl.Args()[ARG_ID][0]
	found, exists, err := db.Knowl().Get(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: knowl %s", kerr.ErrMissing, id)
	}
	return encode(cl.Stdout(), ComposeDocument(found))
}

type RenderFlags struct {
	Footer bool `flag:"footer" help:"append links to the Knowl"`
}

func NewRender() (flarc.Command, error) {
	return flarc.NewCommand(
		"Render a Knowl into a html fragment.",
		RenderFlags{},
		flarc.Args{
			{Name: ARG_ID, Required: true, Help: "id of the Knowl, like ec.q.torsion_order"},
		},
		common.NewTask(Render),
		flarc.WithDescription(`
Render a Knowl into a html fragment, expanding KNOWL and KNOWL_INC macros.

Missing Knowls are rendered as empty.
`),
	)
}

func Render(
	ctx context.Context,
	_ *log.Logger,
	db lmfdb.LMFDB,
	cl flarc.Commandline[RenderFlags],
	_ []any,
) error {
	out, err := db.Knowl().Render(
		ctx, cl.Args()[ARG_ID][0],
		knowl.RenderOption{Footer: cl.Flags().Footer},
	)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cl.Stdout(), out)
	return err
}
