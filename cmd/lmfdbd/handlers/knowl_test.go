package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/lmfdb/lmfdb/cmd/lmfdbd/handlers"
	httptestutil "github.com/lmfdb/lmfdb/internal/testutils/http"
	apiknowls "github.com/lmfdb/lmfdb/pkg/api/types/knowls"
	"github.com/lmfdb/lmfdb/pkg/auth"
	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	kdbmock "github.com/lmfdb/lmfdb/pkg/domain/knowl/db/mock"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

func knowlStore(knowls ...domain.Knowl) *kdbmock.KnowlInterface {
	m := kdbmock.NewKnowlInterface()
	m.Impl.Get = func(_ context.Context, id string) (domain.Knowl, error) {
		for _, k := range knowls {
			if k.Id == id {
				return k, nil
			}
		}
		return domain.Knowl{}, dberrors.Missing{Table: "knowl", Identity: id}
	}
	return m
}

func asHTTPError(t *testing.T, err error) *echo.HTTPError {
	t.Helper()
	he := new(echo.HTTPError)
	if !errors.As(err, &he) {
		t.Fatalf("error is not echo.HTTPError: %v", err)
	}
	return he
}

func editor(c echo.Context, author string) echo.Context {
	return auth.WithEditor(c, &auth.EditorClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: author},
	})
}

var torsion = domain.Knowl{
	Id: "ec.q.torsion_order", Title: "Torsion order", Content: "order of $E(\\Q)_{tors}$",
	Quality: domain.QualityOk, Authors: []string{"alice"}, LastAuthor: "alice",
	Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Version: 3,
}

func TestGetKnowlHandler(t *testing.T) {
	e := echo.New()

	t.Run("it responds a knowl with its version as ETag", func(t *testing.T) {
		testee := handlers.GetKnowlHandler(knowl.New(knowlStore(torsion)), "id")
		c, resp := httptestutil.Get(e, "/api/knowls/ec.q.torsion_order/")
		httptestutil.WithParams(c, []string{"id"}, []string{"ec.q.torsion_order"})

		if err := testee(c); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusOK {
			t.Errorf("status: %d", resp.Code)
		}
		if resp.Header().Get("ETag") != `"3"` {
			t.Errorf("ETag: %s", resp.Header().Get("ETag"))
		}
		actual := apiknowls.Detail{}
		try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
		if actual.Id != torsion.Id || actual.Title != torsion.Title || !actual.Exists || actual.Version != 3 {
			t.Errorf("unexpected body: %+v", actual)
		}
	})

	t.Run("it responds a placeholder for missing knowl", func(t *testing.T) {
		testee := handlers.GetKnowlHandler(knowl.New(knowlStore()), "id")
		c, resp := httptestutil.Get(e, "/api/knowls/test.nonexisting/")
		httptestutil.WithParams(c, []string{"id"}, []string{"test.nonexisting"})

		if err := testee(c); err != nil {
			t.Fatal(err)
		}
		actual := apiknowls.Detail{}
		try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
		if resp.Code != http.StatusOK || actual.Exists || actual.Id != "test.nonexisting" || actual.Title != "" {
			t.Errorf("unexpected response: %d %+v", resp.Code, actual)
		}
		if resp.Header().Get("ETag") != "" {
			t.Error("placeholder should not have ETag")
		}
	})

	t.Run("invalid id is bad request", func(t *testing.T) {
		testee := handlers.GetKnowlHandler(knowl.New(knowlStore()), "id")
		c, _ := httptestutil.Get(e, "/api/knowls/Bad%20Id/")
		httptestutil.WithParams(c, []string{"id"}, []string{"Bad Id"})

		if he := asHTTPError(t, testee(c)); he.Code != http.StatusBadRequest {
			t.Errorf("status: %d", he.Code)
		}
	})
}

func TestPutKnowlHandler(t *testing.T) {
	e := echo.New()

	put := func(store *kdbmock.KnowlInterface) {
		store.Impl.Put = func(_ context.Context, k domain.Knowl, ifVersion *int64) (domain.Knowl, error) {
			if ifVersion == nil || *ifVersion != torsion.Version {
				return domain.Knowl{}, kerr.VersionMismatch{Identity: k.Id, Expected: -1}
			}
			k.Version = torsion.Version + 1
			return k, nil
		}
	}

	type when struct {
		body    string
		ifMatch string
	}
	type then struct {
		status int
	}

	for name, theory := range map[string]struct {
		when
		then
	}{
		"unconditional save": {
			when: when{body: `{"title": "Torsion", "content": "new content"}`},
			then: then{status: http.StatusOK},
		},
		"save with version in body": {
			when: when{body: `{"title": "Torsion", "content": "new content", "version": 3}`},
			then: then{status: http.StatusOK},
		},
		"save with If-Match": {
			when: when{body: `{"title": "Torsion", "content": "new content"}`, ifMatch: `"3"`},
			then: then{status: http.StatusOK},
		},
		"stale version conflicts": {
			when: when{body: `{"title": "Torsion", "content": "new content"}`, ifMatch: `"2"`},
			then: then{status: http.StatusConflict},
		},
		"broken json": {
			when: when{body: `{"title": `},
			then: then{status: http.StatusBadRequest},
		},
		"unknown quality": {
			when: when{body: `{"title": "Torsion", "quality": "excellent"}`},
			then: then{status: http.StatusBadRequest},
		},
		"broken If-Match": {
			when: when{body: `{"title": "Torsion"}`, ifMatch: `"latest"`},
			then: then{status: http.StatusBadRequest},
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := knowlStore(torsion)
			put(store)
			changed := 0
			testee := handlers.PutKnowlHandler(knowl.New(store), "id", func() { changed += 1 })

			opts := []httptestutil.RequestOption{httptestutil.ContentType(echo.MIMEApplicationJSON)}
			if theory.when.ifMatch != "" {
				opts = append(opts, httptestutil.WithHeader("If-Match", theory.when.ifMatch))
			}
			c, resp := httptestutil.Put(e, "/api/knowls/ec.q.torsion_order/", strings.NewReader(theory.when.body), opts...)
			httptestutil.WithParams(c, []string{"id"}, []string{"ec.q.torsion_order"})
			editor(c, "bob")

			err := testee(c)
			if theory.then.status != http.StatusOK {
				if he := asHTTPError(t, err); he.Code != theory.then.status {
					t.Errorf("status: %d", he.Code)
				}
				if changed != 0 {
					t.Error("onChange should not be called")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if resp.Header().Get("ETag") != `"4"` {
				t.Errorf("ETag: %s", resp.Header().Get("ETag"))
			}
			if changed != 1 {
				t.Errorf("onChange is called %d times", changed)
			}

			args, ok := store.Calls.Put.Last()
			if !ok {
				t.Fatal("Put is not called")
			}
			if args.Knowl.LastAuthor != "bob" || args.Knowl.Content != "new content" {
				t.Errorf("saved: %+v", args.Knowl)
			}
			actual := apiknowls.Detail{}
			try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
			if actual.Version != 4 || actual.LastAuthor != "bob" {
				t.Errorf("unexpected body: %+v", actual)
			}
		})
	}

	t.Run("it requires editor", func(t *testing.T) {
		testee := handlers.PutKnowlHandler(knowl.New(knowlStore(torsion)), "id", nil)
		c, _ := httptestutil.Put(
			e, "/api/knowls/ec.q.torsion_order/", strings.NewReader(`{}`),
			httptestutil.ContentType(echo.MIMEApplicationJSON),
		)
		httptestutil.WithParams(c, []string{"id"}, []string{"ec.q.torsion_order"})
		if he := asHTTPError(t, testee(c)); he.Code != http.StatusUnauthorized {
			t.Errorf("status: %d", he.Code)
		}
	})
}

func TestDeleteKnowlHandler(t *testing.T) {
	e := echo.New()

	for name, theory := range map[string]struct {
		deleteErr error
		status    int
	}{
		"existing knowl is deleted": {status: http.StatusNoContent},
		"missing knowl is not found": {
			deleteErr: dberrors.Missing{Table: "knowl", Identity: "a.b"}, status: http.StatusNotFound,
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := kdbmock.NewKnowlInterface()
			store.Impl.Delete = func(context.Context, string) error { return theory.deleteErr }
			changed := 0
			testee := handlers.DeleteKnowlHandler(knowl.New(store), "id", func() { changed += 1 })

			c, resp := httptestutil.Delete(e, "/api/knowls/a.b/")
			httptestutil.WithParams(c, []string{"id"}, []string{"a.b"})
			editor(c, "bob")

			err := testee(c)
			if theory.status == http.StatusNoContent {
				if err != nil {
					t.Fatal(err)
				}
				if resp.Code != http.StatusNoContent || changed != 1 {
					t.Errorf("status = %d, changed = %d", resp.Code, changed)
				}
				return
			}
			if he := asHTTPError(t, err); he.Code != theory.status {
				t.Errorf("status: %d", he.Code)
			}
		})
	}
}

func TestIndexKnowlHandler(t *testing.T) {
	e := echo.New()

	store := kdbmock.NewKnowlInterface()
	store.Impl.Find = func(context.Context, kdb.KnowlFilter) ([]domain.Knowl, error) {
		return []domain.Knowl{
			torsion,
			{Id: "ec.q.rank", Title: "rank", Quality: domain.QualityBeta},
		}, nil
	}
	testee := handlers.IndexKnowlHandler(knowl.New(store))

	q := url.Values{"search": {"Torsion"}, "category": {"ec"}, "quality": {"ok,beta"}}
	c, resp := httptestutil.Get(e, "/api/knowls/?"+q.Encode())
	if err := testee(c); err != nil {
		t.Fatal(err)
	}

	filter, _ := store.Calls.Find.Last()
	if len(filter.Keywords) != 1 || filter.Keywords[0] != "torsion" || filter.Category != "ec" || len(filter.Quality) != 2 {
		t.Errorf("filter: %+v", filter)
	}

	actual := []apiknowls.IndexGroup{}
	try.To(actual, json.Unmarshal(resp.Body.Bytes(), &actual)).OrFatal(t)
	if len(actual) != 2 || actual[0].Letter != "R" || actual[1].Letter != "T" {
		t.Errorf("unexpected body: %s", resp.Body.String())
	}

	t.Run("unknown quality is bad request", func(t *testing.T) {
		c, _ := httptestutil.Get(e, "/api/knowls/?quality=excellent")
		if he := asHTTPError(t, testee(c)); he.Code != http.StatusBadRequest {
			t.Errorf("status: %d", he.Code)
		}
	})
}
