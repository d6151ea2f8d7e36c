package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"

	"github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/common"
	subimport "github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/importer"
	subknowl "github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/knowl"
	subschema "github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/schema"
	subtoken "github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/token"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := log.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	importer := try.To(subimport.New()).OrFatal(logger)
	knowl := try.To(subknowl.New()).OrFatal(logger)
	token := try.To(subtoken.New()).OrFatal(logger)
	schema := try.To(subschema.New()).OrFatal(logger)

	lmfdb := try.To(
		flarc.NewCommandGroup(
			"LMFDB commandline interface",
			common.DefaultCommonFlags(),
			flarc.WithSubcommand("import", importer),
			flarc.WithSubcommand("knowl", knowl),
			flarc.WithSubcommand("token", token),
			flarc.WithSubcommand("schema", schema),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, lmfdb, flarc.WithHelp(true)))
}
