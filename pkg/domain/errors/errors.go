package errors

import (
	"errors"
	"fmt"
)

var (
	// requested entity is not found.
	ErrMissing = errors.New("missing")

	// the stored version does not match the version the writer has read.
	//
	// It means that someone else has written the entity in the meanwhile.
	ErrConflict = errors.New("conflict")

	// an incoming field value collides with the stored one.
	ErrFieldCollision = fmt.Errorf("%w: field collision", ErrConflict)

	// knowl id does not match the syntax of knowl ids.
	ErrInvalidKnowlId = errors.New("invalid knowl id")

	// record (collection, label) is not acceptable.
	ErrInvalidRecord = errors.New("invalid record")
)

// FieldCollision tells which field has collided while merging a record.
type FieldCollision struct {
	Collection string
	Label      string
	Field      string
	Stored     any
	Incoming   any
}

var _ error = FieldCollision{}

func (f FieldCollision) Error() string {
	return fmt.Sprintf(
		"%s/%s: field %q collides (stored: %v, incoming: %v)",
		f.Collection, f.Label, f.Field, f.Stored, f.Incoming,
	)
}

func (f FieldCollision) Unwrap() error {
	return ErrFieldCollision
}

// VersionMismatch is returned by compare-and-swap writes.
type VersionMismatch struct {
	Identity string
	Expected int64
}

var _ error = VersionMismatch{}

func (v VersionMismatch) Error() string {
	if v.Expected == 0 {
		return fmt.Sprintf("%s: already exists", v.Identity)
	}
	return fmt.Sprintf("%s: version %d is not the latest", v.Identity, v.Expected)
}

func (v VersionMismatch) Unwrap() error {
	return ErrConflict
}
