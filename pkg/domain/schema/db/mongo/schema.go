package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	kmongo "github.com/lmfdb/lmfdb/pkg/conn/db/mongo"
	mgknowl "github.com/lmfdb/lmfdb/pkg/domain/knowl/db/mongo"
	"github.com/lmfdb/lmfdb/pkg/domain/schema/db"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const versionCollection = "schema_version"

// DefaultPollInterval is how often Context checks the version in database.
const DefaultPollInterval = 30 * time.Second

// migration brings the database to its version.
type migration struct {
	Version int
	Indexes map[string][]mongo.IndexModel
}

// mongo has no tables to be defined. Schema versions are sets of indexes.
var migrations = []migration{
	{
		Version: 1,
		Indexes: map[string][]mongo.IndexModel{
			mgknowl.Collection: {
				{Keys: bson.D{{Key: "_keywords", Value: 1}}},
				{Keys: bson.D{{Key: "quality", Value: 1}}},
				{Keys: bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}},
			},
		},
	},
}

type mgSchema struct {
	db           *kmongo.Database
	pollInterval time.Duration
}

var _ db.SchemaInterface = &mgSchema{}

func New(db *kmongo.Database) *mgSchema {
	return &mgSchema{db: db, pollInterval: DefaultPollInterval}
}

type versionDoc struct {
	Id      string `bson:"_id"`
	Version int    `bson:"version"`
}

func (s *mgSchema) Version(ctx context.Context) (int, error) {
	var doc versionDoc
	err := s.db.Collection(versionCollection).FindOne(ctx, bson.M{"_id": "schema"}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	} else if err != nil {
		return -1, err
	}
	return doc.Version, nil
}

func (s *mgSchema) Upgrade(ctx context.Context) error {
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		for coll, indexes := range m.Indexes {
			if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
				return fmt.Errorf("schema version %d: %s: %w", m.Version, coll, err)
			}
		}
		if _, err := s.db.Collection(versionCollection).UpdateOne(
			ctx,
			bson.M{"_id": "schema"},
			bson.M{"$set": bson.M{"version": m.Version}},
			options.UpdateOne().SetUpsert(true),
		); err != nil {
			return err
		}
	}
	return nil
}

// Context is canceled when the database is not at the latest migration.
//
// It is checked at first, and then every poll interval.
func (s *mgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	latest := migrations[len(migrations)-1].Version
	return db.Watch(ctx, s.pollInterval, func(ctx context.Context) error {
		current, err := s.Version(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current schema version: %w", err)
		}
		return db.Compare(current, latest)
	})
}
