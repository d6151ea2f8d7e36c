package testenv

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/lmfdb/lmfdb/pkg/conn/db/postgres/pool"
	kpgschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db/postgres"
	"github.com/lmfdb/lmfdb/schema"
)

// environment variable holding the url of the database for tests.
//
// The database should be disposable: tables are truncated for each test.
const EnvDatabaseURI = "LMFDB_TEST_PGURI"

type pg struct {
	pool *pgxpool.Pool
}

func (p *pg) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Cleanup(func() {
		t.Helper()
		ClearTables(ctx, p.pool, t)
	})

	ClearTables(ctx, p.pool, t)
	return kpool.Wrap(p.pool)
}

// PoolBroaker is a interface to get a pool.
type PoolBroaker interface {
	// GetPool returns a pool.
	//
	// Tables are cleaned up before returning and after t.
	GetPool(ctx context.Context, t *testing.T) kpool.Pool
}

// NewPoolBroaker returns a PoolBroaker.
//
// When LMFDB_TEST_PGURI is not set, the test t is skipped.
// The database is upgraded to the latest schema before returning.
func NewPoolBroaker(ctx context.Context, t *testing.T) PoolBroaker {
	t.Helper()

	uri := os.Getenv(EnvDatabaseURI)
	if uri == "" {
		t.Skipf("%s is not set. skip tests with postgres.", EnvDatabaseURI)
	}

	pool, err := pgxpool.Connect(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if err := kpgschema.New(kpool.Wrap(pool), schema.Postgres()).Upgrade(ctx); err != nil {
		t.Fatal(err)
	}

	return &pg{pool: pool}
}

func ClearTables(ctx context.Context, p *pgxpool.Pool, t *testing.T) {
	t.Helper()

	conn, err := p.Acquire(ctx)
	if err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
		return
	}
	defer conn.Release()

	for _, command := range []string{
		`truncate "knowl" RESTART IDENTITY cascade`,
		`truncate "record" RESTART IDENTITY cascade`,
	} {
		if _, err = conn.Exec(ctx, command); err != nil {
			t.Errorf("fail to clean-up tables.: %v", err)
		}
	}
}
