package mongo_test

import (
	"context"
	"testing"

	"github.com/lmfdb/lmfdb/pkg/conn/db/mongo/testenv"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl/db/dbtest"
	mgknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db/mongo"
	mgschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db/mongo"
)

func TestKnowl(t *testing.T) {
	dbtest.Run(t, func(ctx context.Context, t *testing.T) kdb.KnowlInterface {
		db := testenv.GetDatabase(ctx, t)
		if err := mgschema.New(db).Upgrade(ctx); err != nil {
			t.Fatal(err)
		}
		return mgknowl.New(db)
	})
}
