package postgres

import (
	"context"
	"io/fs"

	kpool "github.com/lmfdb/lmfdb/pkg/conn/db/postgres/pool"
	kknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	kpgknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db/postgres"
	dbInterface "github.com/lmfdb/lmfdb/pkg/domain/lmfdb/db"
	krecord "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	kpgrecord "github.com/lmfdb/lmfdb/pkg/domain/record/db/postgres"
	kschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db"
	kpgschema "github.com/lmfdb/lmfdb/pkg/domain/schema/db/postgres"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
	"github.com/lmfdb/lmfdb/schema"
)

type lmfdbPostgres struct {
	pool   kpool.Pool
	knowl  kknowl.KnowlInterface
	record krecord.RecordInterface
	schema kschema.SchemaInterface
}

type Config struct {
	// directory of schema repository. When empty, embedded one is used.
	SchemaRepository string
}

type Option func(*Config) *Config

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

func New(
	ctx context.Context,
	url string,
	options ...Option,
) (dbInterface.Database, error) {
	p, err := kpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	c := Config{}
	for _, option := range options {
		c = *option(&c)
	}

	return Wrap(p, c), nil
}

// Wrap builds Database on an opened pool.
func Wrap(p kpool.Pool, c Config) dbInterface.Database {
	var sc kschema.SchemaInterface
	if c.SchemaRepository != "" {
		sc = kpgschema.FromDirectory(p, c.SchemaRepository)
	} else {
		sc = kpgschema.New(p, embedded())
	}

	return &lmfdbPostgres{
		pool:   p,
		knowl:  kpgknowl.New(p),
		record: kpgrecord.New(p),
		schema: sc,
	}
}

func embedded() fs.FS {
	return schema.Postgres()
}

func (l *lmfdbPostgres) Knowl() kknowl.KnowlInterface {
	return l.knowl
}

func (l *lmfdbPostgres) Record() krecord.RecordInterface {
	return l.record
}

func (l *lmfdbPostgres) Schema() kschema.SchemaInterface {
	return l.schema
}

func (l *lmfdbPostgres) Close(context.Context) error {
	l.pool.Close()
	return nil
}
