package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kmongo "github.com/lmfdb/lmfdb/pkg/conn/db/mongo"
	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// each record collection is a mongo collection, and a record is a document
// keyed by its label. Fields live in a subdocument "fields".
type recordDoc struct {
	Label     string         `bson:"_id"`
	Fields    map[string]any `bson:"fields"`
	Version   int64          `bson:"version"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

func (d recordDoc) asRecord(collection string) domain.Record {
	fields, _ := kmongo.Normalize(d.Fields).(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return domain.Record{
		Collection: collection,
		Label:      d.Label,
		Fields:     fields,
		Version:    d.Version,
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type mgRecord struct {
	db    *kmongo.Database
	clock func() time.Time
}

var _ kdb.RecordInterface = &mgRecord{}

func New(db *kmongo.Database) *mgRecord {
	return &mgRecord{db: db, clock: time.Now}
}

func (m *mgRecord) Get(ctx context.Context, collection string, label string) (domain.Record, error) {
	var doc recordDoc
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": label}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Record{}, dberrors.Missing{Table: collection, Identity: label}
	} else if err != nil {
		return domain.Record{}, xe.Wrap(err)
	}
	return doc.asRecord(collection), nil
}

func (m *mgRecord) Find(ctx context.Context, collection string, query kdb.RecordQuery) ([]domain.Record, int, error) {
	and := bson.A{}
	for _, c := range query.Conditions {
		if err := domain.ValidateFieldName(c.Field); err != nil {
			return nil, 0, err
		}
		key := "fields." + c.Field
		switch {
		case c.Ranges != nil:
			anyOf := bson.A{}
			for _, r := range c.Ranges {
				cond := bson.M{"$type": "number"}
				if r.Min != nil {
					cond["$gte"] = *r.Min
				}
				if r.Max != nil {
					cond["$lte"] = *r.Max
				}
				anyOf = append(anyOf, bson.M{key: cond})
			}
			if len(anyOf) == 0 {
				// matches nothing
				anyOf = append(anyOf, bson.M{"_id": bson.M{"$exists": false}})
			}
			and = append(and, bson.M{"$or": anyOf})
		case c.In != nil:
			and = append(and, bson.M{key: bson.M{"$in": c.In}})
		default:
			and = append(and, bson.M{key: c.Equal})
		}
	}
	filter := bson.M{}
	if len(and) != 0 {
		filter["$and"] = and
	}

	coll := m.db.Collection(collection)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, xe.Wrap(err)
	}

	sort := bson.D{}
	if query.SortBy != "" {
		if err := domain.ValidateFieldName(query.SortBy); err != nil {
			return nil, 0, err
		}
		sort = append(sort, bson.E{Key: "fields." + query.SortBy, Value: 1})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	opts := options.Find().SetSort(sort)
	if 0 < query.Offset {
		opts = opts.SetSkip(int64(query.Offset))
	}
	if 0 < query.Limit {
		opts = opts.SetLimit(int64(query.Limit))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, xe.Wrap(err)
	}
	docs := []recordDoc{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, xe.Wrap(err)
	}

	records := make([]domain.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.asRecord(collection))
	}
	return records, int(total), nil
}

func (m *mgRecord) Put(ctx context.Context, record domain.Record, expectedVersion int64) (domain.Record, error) {
	if err := domain.ValidateRecordKey(record.Collection, record.Label); err != nil {
		return domain.Record{}, err
	}
	fields := record.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	coll := m.db.Collection(record.Collection)
	mismatch := kerr.VersionMismatch{
		Identity: fmt.Sprintf("%s/%s", record.Collection, record.Label),
		Expected: expectedVersion,
	}
	now := m.clock()

	if expectedVersion == 0 {
		doc := recordDoc{Label: record.Label, Fields: fields, Version: 1, UpdatedAt: now}
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.Record{}, mismatch
			}
			return domain.Record{}, xe.Wrap(err)
		}
		return m.Get(ctx, record.Collection, record.Label)
	}

	var doc recordDoc
	err := coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": record.Label, "version": expectedVersion},
		bson.M{
			"$set": bson.M{"fields": fields, "updated_at": now},
			"$inc": bson.M{"version": int64(1)},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Record{}, mismatch
	} else if err != nil {
		return domain.Record{}, xe.Wrap(err)
	}
	return doc.asRecord(record.Collection), nil
}

func (m *mgRecord) EnsureIndex(ctx context.Context, collection string, fields ...string) error {
	if err := domain.ValidateRecordKey(collection, "-"); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	keys := bson.D{}
	for _, f := range fields {
		if err := domain.ValidateFieldName(f); err != nil {
			return err
		}
		keys = append(keys, bson.E{Key: "fields." + f, Value: 1})
	}
	if _, err := m.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(strings.Join(fields, "_")),
	}); err != nil {
		return xe.Wrap(err)
	}
	return nil
}
