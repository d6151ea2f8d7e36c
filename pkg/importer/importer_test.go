package importer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	mocks "github.com/lmfdb/lmfdb/pkg/domain/record/db/mock"
	"github.com/lmfdb/lmfdb/pkg/importer"
	"github.com/lmfdb/lmfdb/pkg/importer/formats"
	"github.com/lmfdb/lmfdb/pkg/utils/retry"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

// store is an in-memory records with compare-and-swap, backing mocks.
type store struct {
	mu      sync.Mutex
	records map[string]domain.Record
}

func newStore() *store {
	return &store{records: map[string]domain.Record{}}
}

func (s *store) mock() *mocks.RecordInterface {
	m := mocks.NewRecordInterface()
	m.Impl.Get = func(_ context.Context, collection string, label string) (domain.Record, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		r, ok := s.records[collection+"/"+label]
		if !ok {
			return domain.Record{}, dberrors.Missing{Table: collection, Identity: label}
		}
		return r, nil
	}
	m.Impl.Put = func(_ context.Context, r domain.Record, expected int64) (domain.Record, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		key := r.Collection + "/" + r.Label
		if s.records[key].Version != expected {
			return domain.Record{}, kerr.VersionMismatch{Identity: key, Expected: expected}
		}
		r.Version = expected + 1
		s.records[key] = r
		return r, nil
	}
	return m
}

func noWait() retry.Backoff {
	return retry.Limited(3, func(context.Context) error { return nil })
}

func TestImporter_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("new record is inserted", func(t *testing.T) {
		s := newStore()
		testee := importer.New(s.mock(), domain.Raise, importer.WithBackoff(noWait))

		outcome := try.To(testee.Upsert(ctx, "ec_curves", "11a1", map[string]any{"rank": 0})).OrFatal(t)
		if outcome != importer.Inserted {
			t.Errorf("outcome: %s", outcome)
		}
		if r := s.records["ec_curves/11a1"]; r.Version != 1 || !domain.SameValue(r.Fields, map[string]any{"rank": 0}) {
			t.Errorf("stored: %+v", r)
		}
	})

	t.Run("new fields are merged, and stored fields are kept", func(t *testing.T) {
		s := newStore()
		s.records["ec_curves/11a1"] = domain.Record{
			Collection: "ec_curves", Label: "11a1",
			Fields:  map[string]any{"rank": 0, "torsion": 5},
			Version: 3,
		}
		testee := importer.New(s.mock(), domain.Raise, importer.WithBackoff(noWait))

		outcome := try.To(testee.Upsert(
			ctx, "ec_curves", "11a1", map[string]any{"rank": 0, "sha": 1},
		)).OrFatal(t)
		if outcome != importer.Updated {
			t.Errorf("outcome: %s", outcome)
		}
		r := s.records["ec_curves/11a1"]
		if r.Version != 4 {
			t.Errorf("version: %d", r.Version)
		}
		if !domain.SameValue(r.Fields, map[string]any{"rank": 0, "torsion": 5, "sha": 1}) {
			t.Errorf("fields: %v", r.Fields)
		}
	})

	t.Run("same fields write nothing", func(t *testing.T) {
		s := newStore()
		s.records["ec_curves/11a1"] = domain.Record{
			Collection: "ec_curves", Label: "11a1",
			Fields:  map[string]any{"rank": float64(0)},
			Version: 1,
		}
		m := s.mock()
		testee := importer.New(m, domain.Raise, importer.WithBackoff(noWait))

		outcome := try.To(testee.Upsert(ctx, "ec_curves", "11a1", map[string]any{"rank": int64(0)})).OrFatal(t)
		if outcome != importer.Unchanged {
			t.Errorf("outcome: %s", outcome)
		}
		if m.Calls.Put.Times() != 0 {
			t.Errorf("Put is called: %v", m.Calls.Put)
		}
	})

	t.Run("collision under Raise is an error", func(t *testing.T) {
		s := newStore()
		s.records["ec_curves/11a1"] = domain.Record{
			Collection: "ec_curves", Label: "11a1",
			Fields:  map[string]any{"rank": 0},
			Version: 1,
		}
		testee := importer.New(s.mock(), domain.Raise, importer.WithBackoff(noWait))

		_, err := testee.Upsert(ctx, "ec_curves", "11a1", map[string]any{"rank": 1})
		if !errors.Is(err, kerr.ErrFieldCollision) {
			t.Fatalf("unexpected error: %v", err)
		}
		if fc := new(kerr.FieldCollision); !errors.As(err, fc) || fc.Field != "rank" {
			t.Errorf("collision should name the field: %v", err)
		}
		if s.records["ec_curves/11a1"].Version != 1 {
			t.Error("record should not be written")
		}
	})

	t.Run("concurrent write is retried on the latest record", func(t *testing.T) {
		s := newStore()
		s.records["ec_curves/11a1"] = domain.Record{
			Collection: "ec_curves", Label: "11a1",
			Fields:  map[string]any{"rank": 0},
			Version: 1,
		}
		m := s.mock()
		get := m.Impl.Get
		interrupted := false
		m.Impl.Get = func(ctx context.Context, collection string, label string) (domain.Record, error) {
			r, err := get(ctx, collection, label)
			if !interrupted {
				// someone writes between our read and write.
				interrupted = true
				s.mu.Lock()
				s.records["ec_curves/11a1"] = domain.Record{
					Collection: "ec_curves", Label: "11a1",
					Fields:  map[string]any{"rank": 0, "torsion": 5},
					Version: 2,
				}
				s.mu.Unlock()
			}
			return r, err
		}
		testee := importer.New(m, domain.Raise, importer.WithBackoff(noWait))

		outcome := try.To(testee.Upsert(ctx, "ec_curves", "11a1", map[string]any{"sha": 1})).OrFatal(t)
		if outcome != importer.Updated {
			t.Errorf("outcome: %s", outcome)
		}
		if m.Calls.Get.Times() != 2 || m.Calls.Put.Times() != 2 {
			t.Errorf("calls: Get x %d, Put x %d", m.Calls.Get.Times(), m.Calls.Put.Times())
		}
		r := s.records["ec_curves/11a1"]
		if r.Version != 3 || !domain.SameValue(r.Fields, map[string]any{"rank": 0, "torsion": 5, "sha": 1}) {
			t.Errorf("stored: %+v", r)
		}
	})

	t.Run("retries are bounded", func(t *testing.T) {
		m := mocks.NewRecordInterface()
		m.Impl.Get = func(context.Context, string, string) (domain.Record, error) {
			return domain.Record{Collection: "ec_curves", Label: "11a1", Version: 1}, nil
		}
		m.Impl.Put = func(_ context.Context, r domain.Record, expected int64) (domain.Record, error) {
			return domain.Record{}, kerr.VersionMismatch{Identity: r.Label, Expected: expected}
		}
		testee := importer.New(m, domain.Raise, importer.WithBackoff(noWait))

		_, err := testee.Upsert(ctx, "ec_curves", "11a1", map[string]any{"sha": 1})
		if !errors.Is(err, kerr.ErrConflict) || !errors.Is(err, retry.ErrExhausted) {
			t.Errorf("unexpected error: %v", err)
		}
		if m.Calls.Put.Times() != 4 {
			t.Errorf("Put is called %d times", m.Calls.Put.Times())
		}
	})

	t.Run("storage error is returned", func(t *testing.T) {
		expectedErr := errors.New("fake error")
		m := mocks.NewRecordInterface()
		m.Impl.Get = func(context.Context, string, string) (domain.Record, error) {
			return domain.Record{}, expectedErr
		}
		testee := importer.New(m, domain.Raise, importer.WithBackoff(noWait))

		if _, err := testee.Upsert(ctx, "ec_curves", "11a1", map[string]any{}); !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid collection is rejected", func(t *testing.T) {
		testee := importer.New(mocks.NewRecordInterface(), domain.Raise)
		if _, err := testee.Upsert(ctx, "EC Curves", "11a1", map[string]any{}); !errors.Is(err, kerr.ErrInvalidRecord) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestImporter_Run(t *testing.T) {
	ctx := context.Background()
	input := strings.Join([]string{
		"# conductor 11",
		"11 a 1 [0,-1,1,-10,-20] 0 5",
		"11 a 2 [0,-1,1,-7820,-263580] 0 1",
		"",
		"11 a 3 broken",
		"37 a 1 [0,0,1,-1,0] 1 1",
	}, "\n")

	t.Run("it imports records and reports malformed lines", func(t *testing.T) {
		s := newStore()
		logs := new(bytes.Buffer)
		testee := importer.New(
			s.mock(), domain.Raise,
			importer.WithBackoff(noWait), importer.WithLogger(log.New(logs, "", 0)),
		)

		summary := try.To(testee.Run(
			ctx, "ec_curves", "allcurves.00000-09999", formats.CremonaAllCurves{}, strings.NewReader(input),
		)).OrFatal(t)

		if summary.Inserted != 3 || summary.Updated != 0 || summary.Unchanged != 0 {
			t.Errorf("summary: %s", summary)
		}
		if len(summary.Rejections) != 1 || summary.Rejections[0].Line != 5 {
			t.Errorf("rejections: %v", summary.Rejections)
		}
		if !strings.Contains(logs.String(), "allcurves.00000-09999:5:") {
			t.Errorf("rejection should be logged: %s", logs.String())
		}
		for _, label := range []string{"11a1", "11a2", "37a1"} {
			if _, ok := s.records["ec_curves/"+label]; !ok {
				t.Errorf("%s is not imported", label)
			}
		}
	})

	t.Run("importing twice yields the same records", func(t *testing.T) {
		s := newStore()
		testee := importer.New(s.mock(), domain.Raise, importer.WithBackoff(noWait))

		try.To(testee.Run(ctx, "ec_curves", "in", formats.CremonaAllCurves{}, strings.NewReader(input))).OrFatal(t)
		first := map[string]domain.Record{}
		for k, v := range s.records {
			first[k] = v
		}

		summary := try.To(testee.Run(ctx, "ec_curves", "in", formats.CremonaAllCurves{}, strings.NewReader(input))).OrFatal(t)
		if summary.Unchanged != 3 || summary.Inserted != 0 || summary.Updated != 0 {
			t.Errorf("summary: %s", summary)
		}
		if len(s.records) != len(first) {
			t.Fatalf("records: %v", s.records)
		}
		for k, r := range s.records {
			if r.Version != first[k].Version || !domain.SameValue(r.Fields, first[k].Fields) {
				t.Errorf("%s is changed: %+v -> %+v", k, first[k], r)
			}
		}
	})

	t.Run("collision aborts the run", func(t *testing.T) {
		s := newStore()
		testee := importer.New(s.mock(), domain.Raise, importer.WithBackoff(noWait))

		in := strings.Join([]string{
			`{"label": "a", "x": 1}`,
			`{"label": "a", "x": 2}`,
			`{"label": "b", "x": 1}`,
		}, "\n")
		summary, err := testee.Run(ctx, "things", "things.jsonl", formats.JSONL{LabelKey: "label"}, strings.NewReader(in))
		if !errors.Is(err, kerr.ErrFieldCollision) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(err.Error(), "things.jsonl:2") {
			t.Errorf("error should tell where: %v", err)
		}
		if summary.Inserted != 1 {
			t.Errorf("summary: %s", summary)
		}
		if _, ok := s.records["things/b"]; ok {
			t.Error("records after the collision should not be imported")
		}
	})

	for _, policy := range []domain.ConflictPolicy{domain.Overwrite, domain.KeepFirst} {
		t.Run(fmt.Sprintf("duplicated labels are merged under %s", policy), func(t *testing.T) {
			s := newStore()
			testee := importer.New(s.mock(), policy, importer.WithBackoff(noWait))

			in := `{"label": "a", "x": 1}` + "\n" + `{"label": "a", "x": 2, "y": 3}`
			summary := try.To(testee.Run(ctx, "things", "in", formats.JSONL{LabelKey: "label"}, strings.NewReader(in))).OrFatal(t)
			if summary.Inserted != 1 || summary.Updated != 1 {
				t.Errorf("summary: %s", summary)
			}

			expectedX := 2
			if policy == domain.KeepFirst {
				expectedX = 1
			}
			r := s.records["things/a"]
			if !domain.SameValue(r.Fields, map[string]any{"label": "a", "x": expectedX, "y": 3}) {
				t.Errorf("fields: %v", r.Fields)
			}
		})
	}

	t.Run("cancelled context stops the run", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		testee := importer.New(newStore().mock(), domain.Raise)
		if _, err := testee.Run(cctx, "ec_curves", "in", formats.CremonaAllCurves{}, strings.NewReader(input)); !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestSummary(t *testing.T) {
	s := importer.Summary{Inserted: 1, Updated: 2}
	s.Add(importer.Summary{Unchanged: 3, Rejections: []importer.Rejection{{Source: "f", Line: 1, Reason: errors.New("bad")}}})
	if s.String() != "inserted: 1, updated: 2, unchanged: 3, rejected: 1" {
		t.Errorf("unexpected: %s", s)
	}
	if s.Rejections[0].String() != "f:1: bad" {
		t.Errorf("unexpected: %s", s.Rejections[0])
	}
}
