package mocks

import (
	"context"
	"errors"

	kdb "github.com/lmfdb/lmfdb/pkg/domain/schema/db"
)

type SchemaInterface struct {
	Impl struct {
		Upgrade func(context.Context) error
		Version func(context.Context) (int, error)
		Context func(context.Context) (context.Context, context.CancelFunc)
	}
	Calls struct {
		Upgrade uint
		Version uint
		Context uint
	}
}

var _ kdb.SchemaInterface = &SchemaInterface{}

func NewSchemaInterface() *SchemaInterface {
	return &SchemaInterface{}
}

func (m *SchemaInterface) Upgrade(ctx context.Context) error {
	m.Calls.Upgrade += 1
	if m.Impl.Upgrade != nil {
		return m.Impl.Upgrade(ctx)
	}
	panic(errors.New("should not be called"))
}

func (m *SchemaInterface) Version(ctx context.Context) (int, error) {
	m.Calls.Version += 1
	if m.Impl.Version != nil {
		return m.Impl.Version(ctx)
	}
	panic(errors.New("should not be called"))
}

func (m *SchemaInterface) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	m.Calls.Context += 1
	if m.Impl.Context != nil {
		return m.Impl.Context(ctx)
	}
	panic(errors.New("should not be called"))
}
