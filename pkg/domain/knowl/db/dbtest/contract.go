// Package dbtest holds tests which every KnowlInterface implementation should pass.
package dbtest

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

// Run runs the contract on knowl stores.
//
// newDB should return an empty store, independent from ones returned before.
func Run(t *testing.T, newDB func(ctx context.Context, t *testing.T) kdb.KnowlInterface) {
	ctx := context.Background()
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	knowl := func(id string, title string, quality domain.KnowlQuality) domain.Knowl {
		content := "about " + title
		return domain.Knowl{
			Id: id, Title: title, Content: content, Quality: quality,
			Authors: []string{"alice"}, LastAuthor: "alice", Timestamp: stamp,
			Keywords: domain.Keywords(id, title, content),
		}
	}
	version := func(v int64) *int64 { return &v }

	same := func(t *testing.T, actual domain.Knowl, expected domain.Knowl) {
		t.Helper()
		if actual.Id != expected.Id ||
			actual.Title != expected.Title ||
			actual.Content != expected.Content ||
			actual.Quality != expected.Quality ||
			!slices.Equal(actual.Authors, expected.Authors) ||
			actual.LastAuthor != expected.LastAuthor ||
			!actual.Timestamp.Equal(expected.Timestamp) ||
			!slices.Equal(actual.Keywords, expected.Keywords) ||
			actual.Version != expected.Version {
			t.Errorf("unexpected knowl:\n===actual===\n%+v\n===expected===\n%+v", actual, expected)
		}
	}

	t.Run("Get on missing knowl is ErrMissing", func(t *testing.T) {
		testee := newDB(ctx, t)
		if _, err := testee.Get(ctx, "test.nonexisting"); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Put with version 0 inserts only a new knowl", func(t *testing.T) {
		testee := newDB(ctx, t)
		k := knowl("ec.q.rank", "Rank", domain.QualityOk)

		stored := try.To(testee.Put(ctx, k, version(0))).OrFatal(t)
		expected := k
		expected.Version = 1
		same(t, stored, expected)
		same(t, try.To(testee.Get(ctx, k.Id)).OrFatal(t), expected)

		if _, err := testee.Put(ctx, k, version(0)); !errors.Is(err, kerr.ErrConflict) {
			t.Errorf("second insert: %v", err)
		}
	})

	t.Run("Put with version updates only the version", func(t *testing.T) {
		testee := newDB(ctx, t)
		k := knowl("ec.q.rank", "Rank", domain.QualityOk)
		try.To(testee.Put(ctx, k, version(0))).OrFatal(t)

		k.Content = "rank of Mordell-Weil group"
		k.Authors = []string{"alice", "bob"}
		k.LastAuthor = "bob"
		stored := try.To(testee.Put(ctx, k, version(1))).OrFatal(t)
		expected := k
		expected.Version = 2
		same(t, stored, expected)

		if _, err := testee.Put(ctx, k, version(1)); !errors.Is(err, kerr.ErrConflict) {
			t.Errorf("stale update: %v", err)
		}
		if _, err := testee.Put(ctx, knowl("test.nonexisting", "x", domain.QualityBeta), version(1)); !errors.Is(err, kerr.ErrConflict) {
			t.Errorf("update of missing knowl: %v", err)
		}
		same(t, try.To(testee.Get(ctx, k.Id)).OrFatal(t), expected)
	})

	t.Run("Put without version overwrites or inserts", func(t *testing.T) {
		testee := newDB(ctx, t)
		k := knowl("ec.q.rank", "Rank", domain.QualityOk)

		stored := try.To(testee.Put(ctx, k, nil)).OrFatal(t)
		if stored.Version != 1 {
			t.Errorf("version of inserted: %d", stored.Version)
		}

		k.Title = "Analytic rank"
		stored = try.To(testee.Put(ctx, k, nil)).OrFatal(t)
		expected := k
		expected.Version = 2
		same(t, stored, expected)
	})

	t.Run("Delete removes a knowl", func(t *testing.T) {
		testee := newDB(ctx, t)
		k := knowl("ec.q.rank", "Rank", domain.QualityOk)
		try.To(testee.Put(ctx, k, nil)).OrFatal(t)

		if err := testee.Delete(ctx, k.Id); err != nil {
			t.Fatal(err)
		}
		if _, err := testee.Get(ctx, k.Id); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("Get after Delete: %v", err)
		}
		if err := testee.Delete(ctx, k.Id); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("second Delete: %v", err)
		}
	})

	t.Run("Find filters knowls and orders them by id", func(t *testing.T) {
		testee := newDB(ctx, t)
		for _, k := range []domain.Knowl{
			knowl("nf.degree", "Degree of a number field", domain.QualityReviewed),
			knowl("ec.q.torsion_order", "Torsion order", domain.QualityOk),
			knowl("ec.q.rank", "Rank", domain.QualityBeta),
			knowl("ecx.torsion", "Torsion", domain.QualityOk),
		} {
			try.To(testee.Put(ctx, k, nil)).OrFatal(t)
		}

		for name, theory := range map[string]struct {
			filter   kdb.KnowlFilter
			expected []string
		}{
			"zero filter matches all": {
				expected: []string{"ec.q.rank", "ec.q.torsion_order", "ecx.torsion", "nf.degree"},
			},
			"by keywords": {
				filter:   kdb.KnowlFilter{Keywords: []string{"torsion"}},
				expected: []string{"ec.q.torsion_order", "ecx.torsion"},
			},
			"by category": {
				filter:   kdb.KnowlFilter{Category: "ec"},
				expected: []string{"ec.q.rank", "ec.q.torsion_order"},
			},
			"by quality": {
				filter:   kdb.KnowlFilter{Quality: []domain.KnowlQuality{domain.QualityBeta, domain.QualityReviewed}},
				expected: []string{"ec.q.rank", "nf.degree"},
			},
			"all together": {
				filter: kdb.KnowlFilter{
					Keywords: []string{"torsion", "order"},
					Category: "ec",
					Quality:  []domain.KnowlQuality{domain.QualityOk},
				},
				expected: []string{"ec.q.torsion_order"},
			},
			"nothing matches": {
				filter:   kdb.KnowlFilter{Category: "g2c"},
				expected: []string{},
			},
		} {
			t.Run(name, func(t *testing.T) {
				found := try.To(testee.Find(ctx, theory.filter)).OrFatal(t)
				ids := make([]string, 0, len(found))
				for _, k := range found {
					ids = append(ids, k.Id)
				}
				if !slices.Equal(ids, theory.expected) {
					t.Errorf("found %v, expected %v", ids, theory.expected)
				}
			})
		}
	})
}
