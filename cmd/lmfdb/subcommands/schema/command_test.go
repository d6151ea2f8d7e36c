package schema_test

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/internal/commandline"
	subschema "github.com/lmfdb/lmfdb/cmd/lmfdb/subcommands/schema"
	"github.com/lmfdb/lmfdb/pkg/configs/server"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb"
	dbmock "github.com/lmfdb/lmfdb/pkg/domain/lmfdb/db/mock"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

func TestUpgrade(t *testing.T) {
	conf := try.To(server.Unmarshal([]byte(`
database:
  backend: postgres
  uri: postgres://lmfdb.invalid/lmfdb
`))).OrFatal(t)

	cl := func(stdout io.Writer) commandline.MockCommandline[struct{}] {
		return commandline.MockCommandline[struct{}]{
			Fullname_: "lmfdb schema upgrade", Stdout_: stdout, Stderr_: io.Discard,
			Args_: map[string][]string{},
		}
	}

	t.Run("it upgrades and prints the new version", func(t *testing.T) {
		mock := dbmock.New()
		version := 1
		mock.Schemas.Impl.Version = func(context.Context) (int, error) { return version, nil }
		mock.Schemas.Impl.Upgrade = func(context.Context) error {
			version = 3
			return nil
		}

		stdout := new(strings.Builder)
		if err := subschema.Upgrade(
			context.Background(), log.New(io.Discard, "", 0), lmfdb.Wrap(conf, mock), cl(stdout), nil,
		); err != nil {
			t.Fatal(err)
		}
		if mock.Schemas.Calls.Upgrade != 1 {
			t.Errorf("Upgrade is called %d times", mock.Schemas.Calls.Upgrade)
		}
		if strings.TrimSpace(stdout.String()) != "3" {
			t.Errorf("stdout: %q", stdout.String())
		}
	})

	t.Run("errors are passed through", func(t *testing.T) {
		expected := errors.New("fake error")
		mock := dbmock.New()
		mock.Schemas.Impl.Version = func(context.Context) (int, error) { return 1, nil }
		mock.Schemas.Impl.Upgrade = func(context.Context) error { return expected }

		err := subschema.Upgrade(
			context.Background(), log.New(io.Discard, "", 0), lmfdb.Wrap(conf, mock), cl(io.Discard), nil,
		)
		if !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
