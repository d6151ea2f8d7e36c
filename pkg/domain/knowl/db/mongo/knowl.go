package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	kmongo "github.com/lmfdb/lmfdb/pkg/conn/db/mongo"
	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
	"github.com/lmfdb/lmfdb/pkg/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection is the name of the collection of knowls.
const Collection = "knowls"

type knowlDoc struct {
	Id         string    `bson:"_id"`
	Title      string    `bson:"title"`
	Content    string    `bson:"content"`
	Quality    string    `bson:"quality"`
	Authors    []string  `bson:"authors"`
	LastAuthor string    `bson:"last_author"`
	Timestamp  time.Time `bson:"timestamp"`
	Keywords   []string  `bson:"_keywords"`
	Version    int64     `bson:"version"`
}

func (d knowlDoc) asKnowl() domain.Knowl {
	return domain.Knowl{
		Id:         d.Id,
		Title:      d.Title,
		Content:    d.Content,
		Quality:    domain.KnowlQuality(d.Quality),
		Authors:    d.Authors,
		LastAuthor: d.LastAuthor,
		Timestamp:  d.Timestamp.UTC(),
		Keywords:   d.Keywords,
		Version:    d.Version,
	}
}

type mgKnowl struct {
	db *kmongo.Database
}

var _ kdb.KnowlInterface = &mgKnowl{}

func New(db *kmongo.Database) *mgKnowl {
	return &mgKnowl{db: db}
}

func (m *mgKnowl) knowls() *mongo.Collection {
	return m.db.Collection(Collection)
}

func (m *mgKnowl) Get(ctx context.Context, id string) (domain.Knowl, error) {
	var doc knowlDoc
	err := m.knowls().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Knowl{}, dberrors.Missing{Table: Collection, Identity: id}
	} else if err != nil {
		return domain.Knowl{}, xe.Wrap(err)
	}
	return doc.asKnowl(), nil
}

func (m *mgKnowl) Put(ctx context.Context, knowl domain.Knowl, ifVersion *int64) (domain.Knowl, error) {
	set := bson.M{
		"title":       knowl.Title,
		"content":     knowl.Content,
		"quality":     string(knowl.Quality),
		"authors":     nonnull(knowl.Authors),
		"last_author": knowl.LastAuthor,
		"timestamp":   knowl.Timestamp,
		"_keywords":   nonnull(knowl.Keywords),
	}
	mismatch := func(expected int64) error {
		return kerr.VersionMismatch{Identity: fmt.Sprintf("knowl %s", knowl.Id), Expected: expected}
	}

	if ifVersion != nil && *ifVersion == 0 {
		set["_id"] = knowl.Id
		set["version"] = int64(1)
		if _, err := m.knowls().InsertOne(ctx, set); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.Knowl{}, mismatch(0)
			}
			return domain.Knowl{}, xe.Wrap(err)
		}
		return m.Get(ctx, knowl.Id)
	}

	filter := bson.M{"_id": knowl.Id}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if ifVersion == nil {
		opts = opts.SetUpsert(true)
	} else {
		filter["version"] = *ifVersion
	}

	var doc knowlDoc
	err := m.knowls().FindOneAndUpdate(
		ctx, filter, bson.M{"$set": set, "$inc": bson.M{"version": int64(1)}}, opts,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) && ifVersion != nil {
		return domain.Knowl{}, mismatch(*ifVersion)
	} else if err != nil {
		return domain.Knowl{}, xe.Wrap(err)
	}
	return doc.asKnowl(), nil
}

func (m *mgKnowl) Delete(ctx context.Context, id string) error {
	res, err := m.knowls().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return xe.Wrap(err)
	}
	if res.DeletedCount == 0 {
		return dberrors.Missing{Table: Collection, Identity: id}
	}
	return nil
}

func (m *mgKnowl) Find(ctx context.Context, filter kdb.KnowlFilter) ([]domain.Knowl, error) {
	query := bson.M{}
	if len(filter.Keywords) != 0 {
		query["_keywords"] = bson.M{"$all": filter.Keywords}
	}
	if filter.Category != "" {
		query["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.Category+".")}
	}
	if len(filter.Quality) != 0 {
		query["quality"] = bson.M{"$in": utils.Map(filter.Quality, domain.KnowlQuality.String)}
	}

	cursor, err := m.knowls().Find(
		ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	docs := []knowlDoc{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, xe.Wrap(err)
	}
	return utils.Map(docs, knowlDoc.asKnowl), nil
}

func nonnull(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
