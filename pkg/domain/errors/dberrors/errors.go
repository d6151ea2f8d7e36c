// dberrors holds error types shared by storage backends.
package dberrors

import (
	"fmt"

	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
)

// requested document is missing.
//
// Table is a table (postgres) or a collection (mongo).
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return kerr.ErrMissing
}
