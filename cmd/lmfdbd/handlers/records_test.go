package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lmfdb/lmfdb/cmd/lmfdbd/handlers"
	httptestutil "github.com/lmfdb/lmfdb/internal/testutils/http"
	"github.com/lmfdb/lmfdb/pkg/ajax"
	apirecords "github.com/lmfdb/lmfdb/pkg/api/types/records"
	"github.com/lmfdb/lmfdb/pkg/cache"
	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	"github.com/lmfdb/lmfdb/pkg/domain/record"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	rdbmock "github.com/lmfdb/lmfdb/pkg/domain/record/db/mock"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

func curves(n int) []domain.Record {
	rs := make([]domain.Record, 0, n)
	for i := 1; i <= n; i++ {
		rs = append(rs, domain.Record{
			Collection: "ec_curves",
			Label:      fmt.Sprintf("11a%d", i),
			Fields:     map[string]any{"conductor": int64(11), "number": int64(i)},
			Version:    1,
			UpdatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		})
	}
	return rs
}

func TestGetRecordHandler(t *testing.T) {
	e := echo.New()
	store := rdbmock.NewRecordInterface()
	store.Impl.Get = func(_ context.Context, collection string, label string) (domain.Record, error) {
		for _, r := range curves(3) {
			if r.Collection == collection && r.Label == label {
				return r, nil
			}
		}
		return domain.Record{}, dberrors.Missing{Table: collection, Identity: label}
	}
	testee := handlers.GetRecordHandler(record.New(store), "collection", "label")

	t.Run("found", func(t *testing.T) {
		c, resp := httptestutil.Get(e, "/api/records/ec_curves/11a2/")
		httptestutil.WithParams(c, []string{"collection", "label"}, []string{"ec_curves", "11a2"})
		if err := testee(c); err != nil {
			t.Fatal(err)
		}
		actual := apirecords.Detail{}
		try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
		if actual.Label != "11a2" || actual.Fields["number"] != float64(2) || actual.UpdatedAt == nil {
			t.Errorf("unexpected body: %s", resp.Body.String())
		}
	})

	for name, theory := range map[string]struct {
		collection, label string
		status            int
	}{
		"missing":            {collection: "ec_curves", label: "37a1", status: http.StatusNotFound},
		"invalid collection": {collection: "EC Curves", label: "11a1", status: http.StatusBadRequest},
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := httptestutil.Get(e, "/api/records/x/y/")
			httptestutil.WithParams(c, []string{"collection", "label"}, []string{theory.collection, theory.label})
			if he := asHTTPError(t, testee(c)); he.Code != theory.status {
				t.Errorf("status: %d", he.Code)
			}
		})
	}
}

func TestFindRecordsHandler(t *testing.T) {
	e := echo.New()
	all := curves(5)

	newStore := func() *rdbmock.RecordInterface {
		store := rdbmock.NewRecordInterface()
		store.Impl.Find = func(_ context.Context, _ string, q kdb.RecordQuery) ([]domain.Record, int, error) {
			from := min(q.Offset, len(all))
			to := min(q.Offset+q.Limit, len(all))
			return all[from:to], len(all), nil
		}
		return store
	}

	t.Run("it finds a page with conditions", func(t *testing.T) {
		store := newStore()
		pool := ajax.New(10, time.Minute)
		testee := handlers.FindRecordsHandler(record.New(store), pool, "/callback_ajax/", "collection")

		c, resp := httptestutil.Get(e, "/api/records/ec_curves/?per_page=2&iso=a&conductor=10-20")
		httptestutil.WithParams(c, []string{"collection"}, []string{"ec_curves"})
		if err := testee(c); err != nil {
			t.Fatal(err)
		}

		args, _ := store.Calls.Find.Last()
		if args.Collection != "ec_curves" || args.Query.Offset != 0 || args.Query.Limit != 2 {
			t.Errorf("unexpected query: %+v", args)
		}
		conds := args.Query.Conditions
		if len(conds) != 2 {
			t.Fatalf("conditions: %+v", conds)
		}
		if conds[0].Field != "conductor" || len(conds[0].Ranges) != 1 ||
			*conds[0].Ranges[0].Min != 10 || *conds[0].Ranges[0].Max != 20 {
			t.Errorf("conductor condition: %+v", conds[0])
		}
		if conds[1].Field != "iso" || conds[1].Equal != "a" {
			t.Errorf("iso condition: %+v", conds[1])
		}

		actual := apirecords.Page{}
		try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
		if len(actual.Records) != 2 || actual.Total != 5 || actual.Pages != 3 || actual.Start != 1 || actual.End != 2 {
			t.Errorf("unexpected page: %+v", actual)
		}
		if !strings.Contains(actual.Next, "page=2") || !strings.Contains(actual.Next, "iso=a") {
			t.Errorf("next: %s", actual.Next)
		}
		if !strings.HasPrefix(actual.AjaxMore, "/callback_ajax/") {
			t.Fatalf("ajax_more: %s", actual.AjaxMore)
		}

		nonce := strings.Trim(strings.TrimPrefix(actual.AjaxMore, "/callback_ajax/"), "/")
		more, ok := pool.Take(nonce)
		if !ok {
			t.Fatal("callback for the next page is not registered")
		}
		fragment := try.To(more(context.Background())).OrFatal(t)
		for _, label := range []string{"11a3", "11a4"} {
			if !strings.Contains(fragment, `<a href="/api/records/ec_curves/`+label+`/">`+label+`</a>`) {
				t.Errorf("%s is not listed: %s", label, fragment)
			}
		}
		if !strings.Contains(fragment, `class="ajax-more"`) {
			t.Errorf("link to page 3 is missing: %s", fragment)
		}

		last, _ := store.Calls.Find.Last()
		if last.Query.Offset != 2 || last.Query.Limit != 2 {
			t.Errorf("next page query: %+v", last.Query)
		}
	})

	t.Run("the last page has no next", func(t *testing.T) {
		testee := handlers.FindRecordsHandler(record.New(newStore()), ajax.New(10, time.Minute), "/callback_ajax/", "collection")
		c, resp := httptestutil.Get(e, "/api/records/ec_curves/?per_page=2&page=3")
		httptestutil.WithParams(c, []string{"collection"}, []string{"ec_curves"})
		if err := testee(c); err != nil {
			t.Fatal(err)
		}
		actual := apirecords.Page{}
		try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
		if len(actual.Records) != 1 || actual.Next != "" || actual.AjaxMore != "" {
			t.Errorf("unexpected page: %+v", actual)
		}
	})

	t.Run("each client gets its own next page through the page cache", func(t *testing.T) {
		pool := ajax.New(10, time.Minute)
		pages := cache.New(10, 15*time.Minute)
		testee := pages.Middleware()(
			handlers.FindRecordsHandler(record.New(newStore()), pool, "/callback_ajax/", "collection"),
		)

		nonces := map[string]bool{}
		for client := 0; client < 2; client++ {
			c, resp := httptestutil.Get(e, "/api/records/ec_curves/?per_page=2")
			httptestutil.WithParams(c, []string{"collection"}, []string{"ec_curves"})
			if err := testee(c); err != nil {
				t.Fatal(err)
			}
			if h := resp.Header().Get("X-Cache"); h != "miss" {
				t.Errorf("client %d: X-Cache = %s", client, h)
			}

			actual := apirecords.Page{}
			try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
			nonce := strings.Trim(strings.TrimPrefix(actual.AjaxMore, "/callback_ajax/"), "/")
			if nonces[nonce] {
				t.Errorf("client %d: nonce is shared: %s", client, nonce)
			}
			nonces[nonce] = true
			if _, ok := pool.Take(nonce); !ok {
				t.Errorf("client %d: next page is not available", client)
			}
		}
	})

	t.Run("the last page is cached", func(t *testing.T) {
		pages := cache.New(10, 15*time.Minute)
		testee := pages.Middleware()(
			handlers.FindRecordsHandler(record.New(newStore()), ajax.New(10, time.Minute), "/callback_ajax/", "collection"),
		)
		for _, expected := range []string{"miss", "hit"} {
			c, resp := httptestutil.Get(e, "/api/records/ec_curves/?per_page=2&page=3")
			httptestutil.WithParams(c, []string{"collection"}, []string{"ec_curves"})
			if err := testee(c); err != nil {
				t.Fatal(err)
			}
			if h := resp.Header().Get("X-Cache"); h != expected {
				t.Errorf("X-Cache = %s, expected %s", h, expected)
			}
		}
	})

	for name, query := range map[string]string{
		"broken page":   "page=zero",
		"broken range":  "conductor=20-10",
		"invalid field": "bad-field=1",
		"invalid sort":  "sort=a.b",
	} {
		t.Run(name+" is bad request", func(t *testing.T) {
			store := newStore()
			testee := handlers.FindRecordsHandler(record.New(store), ajax.New(10, time.Minute), "/callback_ajax/", "collection")
			c, _ := httptestutil.Get(e, "/api/records/ec_curves/?"+query)
			httptestutil.WithParams(c, []string{"collection"}, []string{"ec_curves"})
			if he := asHTTPError(t, testee(c)); he.Code != http.StatusBadRequest {
				t.Errorf("status: %d", he.Code)
			}
			if store.Calls.Find.Times() != 0 {
				t.Error("Find should not be called")
			}
		})
	}
}
