package db

import (
	"context"

	"github.com/lmfdb/lmfdb/pkg/domain"
)

// KnowlFilter narrows down knowls to be listed.
//
// Zero value matches all knowls.
type KnowlFilter struct {
	// every keyword should be in Knowl.Keywords.
	Keywords []string

	// when not empty, knowl id should start with Category + ".".
	Category string

	// when not empty, knowl quality should be one of them.
	Quality []domain.KnowlQuality
}

type KnowlInterface interface {
	// Get a knowl by its id.
	//
	// # Returns
	//
	// - domain.Knowl: found knowl.
	//
	// - error: ErrMissing when there are no such knowl.
	Get(ctx context.Context, id string) (domain.Knowl, error)

	// Put writes a knowl.
	//
	// # Args
	//
	// - ctx
	//
	// - domain.Knowl: knowl to be written. Its Version is ignored.
	//
	// - *int64: when nil, Put overwrites the knowl unconditionally (or inserts it).
	// Otherwise, the stored version should be equal to it (0 means "not stored yet"),
	// or Put fails with ErrConflict.
	//
	// # Returns
	//
	// - domain.Knowl: the knowl as stored, with new version.
	//
	// - error
	Put(ctx context.Context, knowl domain.Knowl, ifVersion *int64) (domain.Knowl, error)

	// Delete a knowl.
	//
	// # Returns
	//
	// - error: ErrMissing when there are no such knowl.
	Delete(ctx context.Context, id string) error

	// Find knowls matching the filter, ordered by id.
	Find(ctx context.Context, filter KnowlFilter) ([]domain.Knowl, error)
}
