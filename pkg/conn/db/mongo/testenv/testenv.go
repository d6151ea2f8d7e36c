package testenv

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	kmongo "github.com/lmfdb/lmfdb/pkg/conn/db/mongo"
)

// environment variable holding the uri of MongoDB for tests.
const EnvDatabaseURI = "LMFDB_TEST_MONGOURI"

// GetDatabase connects to a fresh database, dropped after t.
//
// When LMFDB_TEST_MONGOURI is not set, the test t is skipped.
func GetDatabase(ctx context.Context, t *testing.T) *kmongo.Database {
	t.Helper()

	uri := os.Getenv(EnvDatabaseURI)
	if uri == "" {
		t.Skipf("%s is not set. skip tests with mongodb.", EnvDatabaseURI)
	}

	name := fmt.Sprintf("lmfdb_test_%d", time.Now().UnixNano())
	db, err := kmongo.Connect(ctx, uri, name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		if err := db.Drop(ctx); err != nil {
			t.Errorf("fail to drop test database: %v", err)
		}
		db.Close(ctx)
	})
	return db
}
