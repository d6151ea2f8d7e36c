package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/lmfdb/lmfdb/pkg/conn/db/postgres/pool"
	"github.com/lmfdb/lmfdb/pkg/domain/schema/db"
)

// DefaultPollInterval is how often Context compares the database with the repository.
const DefaultPollInterval = 30 * time.Second

type pgSchema struct {
	pool kpool.Pool

	// directories named with version numbers, holding sql files.
	repository fs.FS

	pollInterval time.Duration
}

var _ db.SchemaInterface = &pgSchema{}

// New creates a Schema with a repository, like schema.Postgres().
//
// The repository has directories named as version numbers (1, 2, ...),
// and each of them has sql files to be applied in lexical order.
func New(pool kpool.Pool, repository fs.FS) *pgSchema {
	return &pgSchema{pool: pool, repository: repository, pollInterval: DefaultPollInterval}
}

// FromDirectory creates a Schema with a repository on local filesystem.
func FromDirectory(pool kpool.Pool, directory string) *pgSchema {
	return New(pool, os.DirFS(directory))
}

type version struct {
	number int
	dir    string
}

func (v version) apply(ctx context.Context, repository fs.FS, conn kpool.Queryer) error {
	entries, err := fs.ReadDir(repository, v.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		p := v.dir + "/" + e.Name()
		query, err := fs.ReadFile(repository, p)
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(query)); err != nil {
			return fmt.Errorf("schema %s: %w", p, err)
		}
	}
	return nil
}

func (s *pgSchema) Version(ctx context.Context) (int, error) {
	var version *int
	err := s.pool.QueryRow(ctx, `select max("version") from "schema_version"`).Scan(&version)
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
		// not initialized yet.
		return 0, nil
	} else if err != nil {
		return -1, err
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

// Upgrade applies versions newer than the database's, in a transaction.
func (s *pgSchema) Upgrade(ctx context.Context) error {
	versions, err := s.versions()
	if err != nil {
		return err
	}

	// outside of tx: a missing table aborts the transaction.
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, v := range versions {
		if v.number <= current {
			continue
		}
		if err := v.apply(ctx, s.repository, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx, `insert into "schema_version" ("version") values ($1)`, v.number,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Context is canceled when the database schema differs from the latest version in the repository.
//
// It is checked at first, and then every poll interval.
func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return db.Watch(ctx, s.pollInterval, func(ctx context.Context) error {
		versions, err := s.versions()
		if err != nil {
			return fmt.Errorf("failed to read schema repository: %w", err)
		}
		latest := 0
		if len(versions) != 0 {
			latest = versions[len(versions)-1].number
		}

		current, err := s.Version(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current schema version: %w", err)
		}
		return db.Compare(current, latest)
	})
}

// versions in the repository, in ascending order.
//
// Entries not named with a number are ignored.
func (s *pgSchema) versions() ([]version, error) {
	entries, err := fs.ReadDir(s.repository, ".")
	if err != nil {
		return nil, err
	}

	versions := make([]version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		versions = append(versions, version{number: n, dir: e.Name()})
	}
	slices.SortFunc(versions, func(a, b version) int { return a.number - b.number })
	return versions, nil
}
