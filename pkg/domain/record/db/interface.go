package db

import (
	"context"

	"github.com/lmfdb/lmfdb/pkg/domain"
)

// Condition on a field of records.
//
// Exactly one of Equal, In or Ranges is used.
type Condition struct {
	Field string

	Equal any
	In    []any

	// numeric field value in any of them.
	Ranges []Range
}

// closed range. nil bound means unbounded.
type Range struct {
	Min *float64
	Max *float64
}

// RecordQuery is a search over a collection.
type RecordQuery struct {
	Conditions []Condition

	// ordering field. empty means by label.
	SortBy string

	Offset int
	Limit  int
}

type RecordInterface interface {
	// Get a record by its natural key.
	//
	// # Returns
	//
	// - error: ErrMissing when there are no such record.
	Get(ctx context.Context, collection string, label string) (domain.Record, error)

	// Find records in a collection.
	//
	// # Returns
	//
	// - []domain.Record: found records in the page specified by Offset and Limit.
	//
	// - int: number of all records matching conditions, ignoring Offset and Limit.
	//
	// - error
	Find(ctx context.Context, collection string, query RecordQuery) ([]domain.Record, int, error)

	// Put writes a record with compare-and-swap on its version.
	//
	// # Args
	//
	// - ctx
	//
	// - domain.Record: record to be written. Its Version and UpdatedAt are ignored.
	//
	// - int64: version the writer has read. 0 means "it should not exist".
	//
	// # Returns
	//
	// - domain.Record: record as stored, with new version (expectedVersion + 1).
	//
	// - error: ErrConflict when the stored version is not expectedVersion.
	Put(ctx context.Context, record domain.Record, expectedVersion int64) (domain.Record, error)

	// EnsureIndex creates an index on fields of records in the collection, if not exists.
	EnsureIndex(ctx context.Context, collection string, fields ...string) error
}
