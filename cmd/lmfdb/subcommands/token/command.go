package token

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/common"
	"github.com/lmfdb/lmfdb/pkg/auth"
	"github.com/lmfdb/lmfdb/pkg/configs/server"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	issue, err := NewIssue()
	if err != nil {
		return nil, err
	}
	return flarc.NewCommandGroup(
		"Manage editor tokens.",
		struct{}{},
		flarc.WithSubcommand("issue", issue),
	)
}

type IssueFlags struct {
	Subject string        `flag:"subject" alias:"s" metavar:"AUTHOR" help:"author id of the editor. required"`
	TTL     time.Duration `flag:"ttl" help:"lifetime of the token. default: auth.tokenTTL in config"`
}

func NewIssue() (flarc.Command, error) {
	return flarc.NewCommand(
		"Issue an editor token.",
		IssueFlags{},
		flarc.Args{},
		common.NewTaskWithConfig(Issue),
		flarc.WithDescription(`
Issue an editor token, signed with the key in auth.secretFile of the config.

Pass the token as "Authorization: Bearer TOKEN" header to edit Knowls.
Saved Knowls are recorded as edited by the subject.
`),
	)
}

func Issue(
	_ context.Context,
	logger *log.Logger,
	conf *server.ServerConfig,
	cl flarc.Commandline[IssueFlags],
	_ []any,
) error {
	flags := cl.Flags()
	if flags.Subject == "" {
		return fmt.Errorf("%w: --subject is required", flarc.ErrUsage)
	}
	aconf := conf.Auth()
	if aconf == nil {
		return fmt.Errorf("%w: auth is not configured", flarc.ErrUsage)
	}

	secret, err := auth.LoadSecret(aconf.SecretFile())
	if err != nil {
		return err
	}
	signer, err := auth.New(secret, aconf.Issuer(), aconf.TokenTTL())
	if err != nil {
		return err
	}
	token, err := signer.Issue(flags.Subject, flags.TTL)
	if err != nil {
		return err
	}
	logger.Printf("issued a token for %s", flags.Subject)
	_, err = fmt.Fprintln(cl.Stdout(), token)
	return err
}
