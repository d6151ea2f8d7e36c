package mocks

import (
	"context"

	kknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	knowlmock "github.com/lmfdb/lmfdb/pkg/domain/knowl/db/mock"
	dbInterface "github.com/lmfdb/lmfdb/pkg/domain/lmfdb/db"
	krecord "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	recordmock "github.com/lmfdb/lmfdb/pkg/domain/record/db/mock"
	kschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db"
	schemamock "github.com/lmfdb/lmfdb/pkg/domain/schema/db/mock"
)

// Database bundles mocks of each storage.
type Database struct {
	Knowls  *knowlmock.KnowlInterface
	Records *recordmock.RecordInterface
	Schemas *schemamock.SchemaInterface

	Closed uint
}

var _ dbInterface.Database = &Database{}

func New() *Database {
	return &Database{
		Knowls:  knowlmock.NewKnowlInterface(),
		Records: recordmock.NewRecordInterface(),
		Schemas: schemamock.NewSchemaInterface(),
	}
}

func (d *Database) Knowl() kknowl.KnowlInterface {
	return d.Knowls
}

func (d *Database) Record() krecord.RecordInterface {
	return d.Records
}

func (d *Database) Schema() kschema.SchemaInterface {
	return d.Schemas
}

func (d *Database) Close(context.Context) error {
	d.Closed += 1
	return nil
}
