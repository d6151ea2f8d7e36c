package lmfdb

import (
	"context"
	"fmt"

	"github.com/lmfdb/lmfdb/pkg/configs/server"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl/render"
	dbInterface "github.com/lmfdb/lmfdb/pkg/domain/lmfdb/db"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb/db/mongo"
	"github.com/lmfdb/lmfdb/pkg/domain/lmfdb/db/postgres"
	"github.com/lmfdb/lmfdb/pkg/domain/record"
	"github.com/lmfdb/lmfdb/pkg/domain/schema"
)

type LMFDB interface {
	Config() *server.ServerConfig

	Knowl() knowl.Interface
	Record() record.Interface
	Schema() schema.Interface

	Close(context.Context) error
}

type lmfdb struct {
	config *server.ServerConfig
	db     dbInterface.Database

	knowl  knowl.Interface
	record record.Interface
	schema schema.Interface
}

type Option func(*_options)

type _options struct {
	knowl []knowl.Option
}

// WithKnowlOptions passes options to the knowl service.
func WithKnowlOptions(options ...knowl.Option) Option {
	return func(o *_options) {
		o.knowl = append(o.knowl, options...)
	}
}

// New connects to the database in config, and builds services on it.
func New(ctx context.Context, config *server.ServerConfig, options ...Option) (LMFDB, error) {
	dbconf := config.Database()

	var db dbInterface.Database
	switch dbconf.Backend() {
	case server.Postgres:
		pg, err := postgres.New(ctx, dbconf.URI(), postgres.WithSchemaRepository(dbconf.Schema()))
		if err != nil {
			return nil, err
		}
		db = pg
	case server.Mongo:
		mg, err := mongo.New(ctx, dbconf.URI(), dbconf.Name())
		if err != nil {
			return nil, err
		}
		db = mg
	default:
		return nil, fmt.Errorf("unsupported database backend: %s", dbconf.Backend())
	}

	return Wrap(config, db, options...), nil
}

// Wrap builds services on an opened database.
func Wrap(config *server.ServerConfig, db dbInterface.Database, options ...Option) LMFDB {
	opt := &_options{}
	for _, o := range options {
		o(opt)
	}

	kconf := config.Knowl()
	knowlOptions := append([]knowl.Option{
		knowl.WithRenderOptions(
			render.WithMaxDepth(kconf.MaxDepth()),
			render.WithSearchBase(kconf.SearchBase()),
		),
	}, opt.knowl...)

	return &lmfdb{
		config: config,
		db:     db,
		knowl:  knowl.New(db.Knowl(), knowlOptions...),
		record: record.New(db.Record()),
		schema: schema.New(db.Schema()),
	}
}

func (l *lmfdb) Config() *server.ServerConfig {
	return l.config
}

func (l *lmfdb) Knowl() knowl.Interface {
	return l.knowl
}

func (l *lmfdb) Record() record.Interface {
	return l.record
}

func (l *lmfdb) Schema() schema.Interface {
	return l.schema
}

func (l *lmfdb) Close(ctx context.Context) error {
	return l.db.Close(ctx)
}
