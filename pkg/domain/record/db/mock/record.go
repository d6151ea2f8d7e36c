package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/lmfdb/lmfdb/pkg/domain"
	kdbmock "github.com/lmfdb/lmfdb/pkg/domain/internal/db/mock"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
)

type GetArgs struct {
	Collection string
	Label      string
}

type FindArgs struct {
	Collection string
	Query      kdb.RecordQuery
}

type PutArgs struct {
	Record          domain.Record
	ExpectedVersion int64
}

type EnsureIndexArgs struct {
	Collection string
	Fields     []string
}

// RecordInterface is a mock of kdb.RecordInterface.
//
// Calls are recorded under a lock, so it can be called from goroutines.
type RecordInterface struct {
	mu sync.Mutex

	Impl struct {
		Get         func(context.Context, string, string) (domain.Record, error)
		Find        func(context.Context, string, kdb.RecordQuery) ([]domain.Record, int, error)
		Put         func(context.Context, domain.Record, int64) (domain.Record, error)
		EnsureIndex func(context.Context, string, ...string) error
	}
	Calls struct {
		Get         kdbmock.CallLog[GetArgs]
		Find        kdbmock.CallLog[FindArgs]
		Put         kdbmock.CallLog[PutArgs]
		EnsureIndex kdbmock.CallLog[EnsureIndexArgs]
	}
}

var _ kdb.RecordInterface = &RecordInterface{}

func NewRecordInterface() *RecordInterface {
	return &RecordInterface{}
}

func (m *RecordInterface) Get(ctx context.Context, collection string, label string) (domain.Record, error) {
	m.mu.Lock()
	m.Calls.Get = append(m.Calls.Get, GetArgs{Collection: collection, Label: label})
	m.mu.Unlock()
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, collection, label)
	}
	panic(errors.New("should not be called"))
}

func (m *RecordInterface) Find(ctx context.Context, collection string, query kdb.RecordQuery) ([]domain.Record, int, error) {
	m.mu.Lock()
	m.Calls.Find = append(m.Calls.Find, FindArgs{Collection: collection, Query: query})
	m.mu.Unlock()
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, collection, query)
	}
	panic(errors.New("should not be called"))
}

func (m *RecordInterface) Put(ctx context.Context, record domain.Record, expectedVersion int64) (domain.Record, error) {
	m.mu.Lock()
	m.Calls.Put = append(m.Calls.Put, PutArgs{Record: record, ExpectedVersion: expectedVersion})
	m.mu.Unlock()
	if m.Impl.Put != nil {
		return m.Impl.Put(ctx, record, expectedVersion)
	}
	panic(errors.New("should not be called"))
}

func (m *RecordInterface) EnsureIndex(ctx context.Context, collection string, fields ...string) error {
	m.mu.Lock()
	m.Calls.EnsureIndex = append(m.Calls.EnsureIndex, EnsureIndexArgs{Collection: collection, Fields: fields})
	m.mu.Unlock()
	if m.Impl.EnsureIndex != nil {
		return m.Impl.EnsureIndex(ctx, collection, fields...)
	}
	panic(errors.New("should not be called"))
}
