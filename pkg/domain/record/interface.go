package record

import "github.com/lmfdb/lmfdb/pkg/domain/record/db"

type Interface interface {
	Database() db.RecordInterface
}

type impl struct {
	db db.RecordInterface
}

func New(db db.RecordInterface) Interface {
	return &impl{db: db}
}

func (i *impl) Database() db.RecordInterface {
	return i.db
}
