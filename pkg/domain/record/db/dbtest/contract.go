// Package dbtest holds tests which every RecordInterface implementation should pass.
package dbtest

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

const collection = "ec_curves"

func curve(label string, conductor int, iso string, rank int) domain.Record {
	return domain.Record{
		Collection: collection,
		Label:      label,
		Fields: map[string]any{
			"conductor": conductor,
			"iso":       iso,
			"rank":      rank,
			"ainvs":     []any{0, -1, 1, -10, -20},
		},
	}
}

func labels(records []domain.Record) []string {
	ls := make([]string, 0, len(records))
	for _, r := range records {
		ls = append(ls, r.Label)
	}
	return ls
}

func bound(f float64) *float64 { return &f }

// Run runs the contract on record stores.
//
// newDB should return an empty store, independent from ones returned before.
func Run(t *testing.T, newDB func(ctx context.Context, t *testing.T) kdb.RecordInterface) {
	ctx := context.Background()

	sameFields := func(t *testing.T, actual domain.Record, expected domain.Record) {
		t.Helper()
		if actual.Collection != expected.Collection || actual.Label != expected.Label {
			t.Errorf("key: %s/%s, expected %s/%s", actual.Collection, actual.Label, expected.Collection, expected.Label)
		}
		if !domain.SameValue(actual.Fields, expected.Fields) {
			t.Errorf("fields:\n===actual===\n%v\n===expected===\n%v", actual.Fields, expected.Fields)
		}
	}

	t.Run("Get on missing record is ErrMissing", func(t *testing.T) {
		testee := newDB(ctx, t)
		if _, err := testee.Get(ctx, collection, "11a1"); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Put is compare-and-swap on version", func(t *testing.T) {
		testee := newDB(ctx, t)
		rec := curve("11a1", 11, "a", 0)

		stored := try.To(testee.Put(ctx, rec, 0)).OrFatal(t)
		if stored.Version != 1 || stored.UpdatedAt.IsZero() {
			t.Errorf("inserted: version %d, updated at %s", stored.Version, stored.UpdatedAt)
		}
		sameFields(t, stored, rec)
		sameFields(t, try.To(testee.Get(ctx, collection, "11a1")).OrFatal(t), rec)

		if _, err := testee.Put(ctx, rec, 0); !errors.Is(err, kerr.ErrConflict) {
			t.Errorf("second insert: %v", err)
		}

		rec.Fields["torsion"] = 5
		stored = try.To(testee.Put(ctx, rec, 1)).OrFatal(t)
		if stored.Version != 2 {
			t.Errorf("updated version: %d", stored.Version)
		}
		sameFields(t, stored, rec)

		if _, err := testee.Put(ctx, rec, 1); !errors.Is(err, kerr.ErrConflict) {
			t.Errorf("stale update: %v", err)
		}
		if _, err := testee.Put(ctx, curve("37a1", 37, "a", 1), 3); !errors.Is(err, kerr.ErrConflict) {
			t.Errorf("update of missing record: %v", err)
		}
	})

	t.Run("collections do not share labels", func(t *testing.T) {
		testee := newDB(ctx, t)
		try.To(testee.Put(ctx, curve("11a1", 11, "a", 0), 0)).OrFatal(t)

		other := domain.Record{Collection: "ec_classes", Label: "11a1", Fields: map[string]any{"size": 3}}
		try.To(testee.Put(ctx, other, 0)).OrFatal(t)

		sameFields(t, try.To(testee.Get(ctx, "ec_classes", "11a1")).OrFatal(t), other)
		found, n, err := testee.Find(ctx, collection, kdb.RecordQuery{})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 || !slices.Equal(labels(found), []string{"11a1"}) {
			t.Errorf("found %v (total %d)", labels(found), n)
		}
	})

	t.Run("reserved collections are rejected", func(t *testing.T) {
		testee := newDB(ctx, t)
		for _, name := range domain.ReservedCollections {
			rec := domain.Record{Collection: name, Label: "11a1", Fields: map[string]any{"rank": 0}}
			if _, err := testee.Put(ctx, rec, 0); !errors.Is(err, kerr.ErrInvalidRecord) {
				t.Errorf("%s: unexpected error: %v", name, err)
			}
		}
	})

	t.Run("large integers are kept exactly", func(t *testing.T) {
		testee := newDB(ctx, t)
		rec := curve("5077a1", 5077, "a", 3)
		rec.Fields["a6"] = int64(9007199254740993)
		try.To(testee.Put(ctx, rec, 0)).OrFatal(t)

		got := try.To(testee.Get(ctx, collection, "5077a1")).OrFatal(t)
		if !domain.SameValue(got.Fields["a6"], int64(9007199254740993)) {
			t.Errorf("a6: %#v", got.Fields["a6"])
		}
	})

	t.Run("Find", func(t *testing.T) {
		testee := newDB(ctx, t)
		for _, rec := range []domain.Record{
			curve("37b1", 37, "b", 0),
			curve("11a1", 11, "a", 0),
			curve("37a1", 37, "a", 1),
			curve("14a1", 14, "a", 0),
			curve("11a2", 11, "a", 0),
		} {
			try.To(testee.Put(ctx, rec, 0)).OrFatal(t)
		}

		for name, theory := range map[string]struct {
			query    kdb.RecordQuery
			expected []string
			total    int
		}{
			"no conditions are ordered by label": {
				expected: []string{"11a1", "11a2", "14a1", "37a1", "37b1"},
				total:    5,
			},
			"equal": {
				query:    kdb.RecordQuery{Conditions: []kdb.Condition{{Field: "iso", Equal: "b"}}},
				expected: []string{"37b1"},
				total:    1,
			},
			"in": {
				query:    kdb.RecordQuery{Conditions: []kdb.Condition{{Field: "conductor", In: []any{14, 37}}}},
				expected: []string{"14a1", "37a1", "37b1"},
				total:    3,
			},
			"range": {
				query: kdb.RecordQuery{Conditions: []kdb.Condition{
					{Field: "conductor", Ranges: []kdb.Range{{Min: bound(12), Max: bound(40)}}},
				}},
				expected: []string{"14a1", "37a1", "37b1"},
				total:    3,
			},
			"union of open ranges": {
				query: kdb.RecordQuery{Conditions: []kdb.Condition{
					{Field: "conductor", Ranges: []kdb.Range{{Max: bound(11)}, {Min: bound(37)}}},
				}},
				expected: []string{"11a1", "11a2", "37a1", "37b1"},
				total:    4,
			},
			"conditions are conjunctive": {
				query: kdb.RecordQuery{Conditions: []kdb.Condition{
					{Field: "iso", Equal: "a"},
					{Field: "conductor", Ranges: []kdb.Range{{Min: bound(14)}}},
				}},
				expected: []string{"14a1", "37a1"},
				total:    2,
			},
			"range on non-numeric field matches nothing": {
				query: kdb.RecordQuery{Conditions: []kdb.Condition{
					{Field: "iso", Ranges: []kdb.Range{{Min: bound(0)}}},
				}},
				expected: []string{},
				total:    0,
			},
			"sort by field, then by label": {
				query:    kdb.RecordQuery{SortBy: "rank"},
				expected: []string{"11a1", "11a2", "14a1", "37b1", "37a1"},
				total:    5,
			},
			"page": {
				query:    kdb.RecordQuery{Offset: 1, Limit: 2},
				expected: []string{"11a2", "14a1"},
				total:    5,
			},
			"page over the end": {
				query:    kdb.RecordQuery{Offset: 10, Limit: 2},
				expected: []string{},
				total:    5,
			},
		} {
			t.Run(name, func(t *testing.T) {
				found, total, err := testee.Find(ctx, collection, theory.query)
				if err != nil {
					t.Fatal(err)
				}
				if !slices.Equal(labels(found), theory.expected) || total != theory.total {
					t.Errorf("found %v (total %d), expected %v (total %d)", labels(found), total, theory.expected, theory.total)
				}
			})
		}

		t.Run("invalid field name is rejected", func(t *testing.T) {
			_, _, err := testee.Find(ctx, collection, kdb.RecordQuery{SortBy: "a.b"})
			if !errors.Is(err, kerr.ErrInvalidRecord) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	})

	t.Run("EnsureIndex is idempotent", func(t *testing.T) {
		testee := newDB(ctx, t)
		try.To(testee.Put(ctx, curve("11a1", 11, "a", 0), 0)).OrFatal(t)
		for i := 0; i < 2; i++ {
			if err := testee.EnsureIndex(ctx, collection, "conductor", "iso"); err != nil {
				t.Fatal(err)
			}
		}
		if err := testee.EnsureIndex(ctx, collection); err != nil {
			t.Errorf("no fields: %v", err)
		}
	})
}
