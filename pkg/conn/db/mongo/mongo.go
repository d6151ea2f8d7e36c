// mongo connects to MongoDB, where lmfdb stores knowls and records as documents.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Database is a connected MongoDB database.
type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri and pings it.
//
// # Args
//
// - ctx
//
// - uri: mongodb connection string, like "mongodb://localhost:27017".
//
// - name: database name.
func Connect(ctx context.Context, uri string, name string) (*Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &Database{client: client, db: client.Database(name)}, nil
}

func (d *Database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// Drop the whole database.
func (d *Database) Drop(ctx context.Context) error {
	return d.db.Drop(ctx)
}

func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Normalize converts values decoded from BSON into plain Go values:
// embedded documents into map[string]any and arrays into []any, recursively.
func Normalize(v any) any {
	switch vv := v.(type) {
	case bson.D:
		m := make(map[string]any, len(vv))
		for _, e := range vv {
			m[e.Key] = Normalize(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(vv))
		for k, e := range vv {
			m[k] = Normalize(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(vv))
		for k, e := range vv {
			m[k] = Normalize(e)
		}
		return m
	case bson.A:
		a := make([]any, len(vv))
		for i, e := range vv {
			a[i] = Normalize(e)
		}
		return a
	case []any:
		a := make([]any, len(vv))
		for i, e := range vv {
			a[i] = Normalize(e)
		}
		return a
	}
	return v
}
