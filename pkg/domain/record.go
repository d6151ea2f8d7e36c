package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math/big"
	"regexp"
	"slices"
	"time"

	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
)

// Record is a label-keyed document of a dataset, like an elliptic curve "11a1"
// in "ec_curves" or a number field "2.2.5.1" in "nf_fields".
type Record struct {
	Collection string
	Label      string
	Fields     map[string]any

	// incremented on each write. Zero means "not stored yet".
	Version   int64
	UpdatedAt time.Time
}

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReservedCollections are names used by knowls and schema bookkeeping.
// Records can not be stored under them.
var ReservedCollections = []string{"knowls", "knowl", "schema_version", "record"}

// ValidateRecordKey checks collection and label of a record.
func ValidateRecordKey(collection string, label string) error {
	if !collectionPattern.MatchString(collection) {
		return fmt.Errorf("%w: collection name %q", kerr.ErrInvalidRecord, collection)
	}
	if slices.Contains(ReservedCollections, collection) {
		return fmt.Errorf("%w: collection name %q is reserved", kerr.ErrInvalidRecord, collection)
	}
	if label == "" {
		return fmt.Errorf("%w: empty label in %s", kerr.ErrInvalidRecord, collection)
	}
	return nil
}

// ValidateFieldName checks a field name is usable in queries and indexes.
func ValidateFieldName(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: field name %q", kerr.ErrInvalidRecord, field)
	}
	return nil
}

// ConflictPolicy decides what Merge does when a field is present
// both in the stored document and in the incoming one, with different values.
type ConflictPolicy int

const (
	// Raise rejects the merge with FieldCollision.
	Raise ConflictPolicy = iota
	// Overwrite takes the incoming value.
	Overwrite
	// KeepFirst keeps the stored value.
	KeepFirst
)

func (p ConflictPolicy) String() string {
	switch p {
	case Raise:
		return "raise"
	case Overwrite:
		return "overwrite"
	case KeepFirst:
		return "keep-first"
	}
	return fmt.Sprintf("ConflictPolicy(%d)", int(p))
}

func AsConflictPolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "raise":
		return Raise, nil
	case "overwrite":
		return Overwrite, nil
	case "keep-first", "keep_first":
		return KeepFirst, nil
	}
	return Raise, fmt.Errorf("unknown conflict policy: %s", s)
}

// Merge merges incoming fields into stored ones, shallowly.
//
// Fields only in stored are preserved. Fields only in incoming are added.
// Fields in both with equal values are left as they are.
// Fields in both with different values are handled by policy.
//
// # Args
//
// - collection, label: identity of the record, used in errors.
//
// - stored: fields of the stored document. It is not modified.
//
// - incoming: fields parsed from input.
//
// - policy: ConflictPolicy.
//
// # Returns
//
// - map[string]any: merged fields.
//
// - bool: true if merged fields differ from stored ones.
//
// - error: FieldCollision, when policy is Raise and a collision is found.
func Merge(
	collection string, label string,
	stored map[string]any, incoming map[string]any,
	policy ConflictPolicy,
) (map[string]any, bool, error) {
	merged := maps.Clone(stored)
	if merged == nil {
		merged = map[string]any{}
	}
	changed := false

	for key, newValue := range incoming {
		oldValue, ok := merged[key]
		if !ok {
			merged[key] = newValue
			changed = true
			continue
		}
		if SameValue(oldValue, newValue) {
			continue
		}
		switch policy {
		case Overwrite:
			merged[key] = newValue
			changed = true
		case KeepFirst:
		default:
			return nil, false, kerr.FieldCollision{
				Collection: collection, Label: label,
				Field: key, Stored: oldValue, Incoming: newValue,
			}
		}
	}
	return merged, changed, nil
}

// SameValue compares two field values by their JSON encoding.
//
// Values which are decoded by different decoders (e.g. int32 from BSON and
// float64 from JSON) are the same when they encode to the same JSON.
// Numbers are compared exactly, as rationals, so integers beyond 2^53 stay distinct.
func SameValue(a, b any) bool {
	ga, erra := generic(a)
	gb, errb := generic(b)
	if erra != nil || errb != nil {
		return false
	}
	return sameGeneric(ga, gb)
}

// generic decodes the JSON encoding of v, keeping numbers as json.Number.
func generic(v any) (any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func sameGeneric(a, b any) bool {
	switch a := a.(type) {
	case map[string]any:
		b, ok := b.(map[string]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for k, va := range a {
			vb, ok := b[k]
			if !ok || !sameGeneric(va, vb) {
				return false
			}
		}
		return true
	case []any:
		b, ok := b.([]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !sameGeneric(a[i], b[i]) {
				return false
			}
		}
		return true
	case json.Number:
		b, ok := b.(json.Number)
		if !ok {
			return false
		}
		ra, oka := new(big.Rat).SetString(a.String())
		rb, okb := new(big.Rat).SetString(b.String())
		if !oka || !okb {
			return a == b
		}
		return ra.Cmp(rb) == 0
	default:
		return a == b
	}
}
