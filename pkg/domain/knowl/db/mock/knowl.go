package mocks

import (
	"context"
	"errors"

	"github.com/lmfdb/lmfdb/pkg/domain"
	kdbmock "github.com/lmfdb/lmfdb/pkg/domain/internal/db/mock"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
)

type PutArgs struct {
	Knowl     domain.Knowl
	IfVersion *int64
}

type KnowlInterface struct {
	Impl struct {
		Get    func(context.Context, string) (domain.Knowl, error)
		Put    func(context.Context, domain.Knowl, *int64) (domain.Knowl, error)
		Delete func(context.Context, string) error
		Find   func(context.Context, kdb.KnowlFilter) ([]domain.Knowl, error)
	}
	Calls struct {
		Get    kdbmock.CallLog[string]
		Put    kdbmock.CallLog[PutArgs]
		Delete kdbmock.CallLog[string]
		Find   kdbmock.CallLog[kdb.KnowlFilter]
	}
}

var _ kdb.KnowlInterface = &KnowlInterface{}

func NewKnowlInterface() *KnowlInterface {
	return &KnowlInterface{}
}

func (m *KnowlInterface) Get(ctx context.Context, id string) (domain.Knowl, error) {
	m.Calls.Get = append(m.Calls.Get, id)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, id)
	}
	panic(errors.New("should not be called"))
}

func (m *KnowlInterface) Put(ctx context.Context, knowl domain.Knowl, ifVersion *int64) (domain.Knowl, error) {
	m.Calls.Put = append(m.Calls.Put, PutArgs{Knowl: knowl, IfVersion: ifVersion})
	if m.Impl.Put != nil {
		return m.Impl.Put(ctx, knowl, ifVersion)
	}
	panic(errors.New("should not be called"))
}

func (m *KnowlInterface) Delete(ctx context.Context, id string) error {
	m.Calls.Delete = append(m.Calls.Delete, id)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, id)
	}
	panic(errors.New("should not be called"))
}

func (m *KnowlInterface) Find(ctx context.Context, filter kdb.KnowlFilter) ([]domain.Knowl, error) {
	m.Calls.Find = append(m.Calls.Find, filter)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, filter)
	}
	panic(errors.New("should not be called"))
}
