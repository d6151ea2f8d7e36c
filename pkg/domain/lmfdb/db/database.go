package db

import (
	"context"

	kknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	krecord "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	kschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db"
)

// Database is a set of storages on a backend.
type Database interface {
	Knowl() kknowl.KnowlInterface
	Record() krecord.RecordInterface
	Schema() kschema.SchemaInterface
	Close(context.Context) error
}
