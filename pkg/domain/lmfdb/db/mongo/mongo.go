package mongo

import (
	"context"

	kmongo "github.com/lmfdb/lmfdb/pkg/conn/db/mongo"
	kknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	kmgknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db/mongo"
	dbInterface "github.com/lmfdb/lmfdb/pkg/domain/lmfdb/db"
	krecord "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	kmgrecord "github.com/lmfdb/lmfdb/pkg/domain/record/db/mongo"
	kschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db"
	kmgschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db/mongo"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
)

type lmfdbMongo struct {
	db     *kmongo.Database
	knowl  kknowl.KnowlInterface
	record krecord.RecordInterface
	schema kschema.SchemaInterface
}

func New(ctx context.Context, uri string, name string) (dbInterface.Database, error) {
	db, err := kmongo.Connect(ctx, uri, name)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Wrap(db), nil
}

// Wrap builds Database on a connected database.
func Wrap(db *kmongo.Database) dbInterface.Database {
	return &lmfdbMongo{
		db:     db,
		knowl:  kmgknowl.New(db),
		record: kmgrecord.New(db),
		schema: kmgschema.New(db),
	}
}

func (l *lmfdbMongo) Knowl() kknowl.KnowlInterface {
	return l.knowl
}

func (l *lmfdbMongo) Record() krecord.RecordInterface {
	return l.record
}

func (l *lmfdbMongo) Schema() kschema.SchemaInterface {
	return l.schema
}

func (l *lmfdbMongo) Close(ctx context.Context) error {
	return l.db.Close(ctx)
}
