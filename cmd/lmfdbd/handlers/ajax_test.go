package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lmfdb/lmfdb/cmd/lmfdbd/handlers"
	httptestutil "github.com/lmfdb/lmfdb/internal/testutils/http"
	"github.com/lmfdb/lmfdb/pkg/ajax"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	"github.com/lmfdb/lmfdb/pkg/utils/try"
)

func TestAjaxHandler(t *testing.T) {
	e := echo.New()

	t.Run("it runs the callback once", func(t *testing.T) {
		pool := ajax.New(10, time.Minute)
		nonce := try.To(pool.Register(func(context.Context) (string, error) {
			return "<p>hello</p>", nil
		}, false)).OrFatal(t)
		testee := handlers.AjaxHandler(pool, "nonce")

		c, resp := httptestutil.Get(e, ajax.URL("/callback_ajax/", nonce))
		httptestutil.WithParams(c, []string{"nonce"}, []string{nonce})
		if err := testee(c); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusOK || resp.Body.String() != "<p>hello</p>" {
			t.Errorf("unexpected response: %d %s", resp.Code, resp.Body.String())
		}

		c, resp = httptestutil.Get(e, ajax.URL("/callback_ajax/", nonce))
		httptestutil.WithParams(c, []string{"nonce"}, []string{nonce})
		if err := testee(c); err != nil {
			t.Fatal(err)
		}
		if resp.Body.String() != ajax.Expired {
			t.Errorf("second take should be expired: %s", resp.Body.String())
		}
	})

	t.Run("unknown nonce is gone for json clients", func(t *testing.T) {
		testee := handlers.AjaxHandler(ajax.New(10, time.Minute), "nonce")
		c, _ := httptestutil.Get(
			e, "/callback_ajax/unknown/",
			httptestutil.WithHeader(echo.HeaderAccept, echo.MIMEApplicationJSON),
		)
		httptestutil.WithParams(c, []string{"nonce"}, []string{"unknown"})
		if he := asHTTPError(t, testee(c)); he.Code != http.StatusGone {
			t.Errorf("status: %d", he.Code)
		}
	})

	t.Run("callback errors are passed through", func(t *testing.T) {
		pool := ajax.New(10, time.Minute)
		nonce := try.To(pool.Register(func(context.Context) (string, error) {
			return "", errors.Join(errors.New("gone away"), dberrors.Missing{Table: "ec_curves", Identity: "11a1"})
		}, true)).OrFatal(t)
		testee := handlers.AjaxHandler(pool, "nonce")

		c, _ := httptestutil.Get(e, ajax.URL("/callback_ajax/", nonce))
		httptestutil.WithParams(c, []string{"nonce"}, []string{nonce})
		if he := asHTTPError(t, testee(c)); he.Code != http.StatusNotFound {
			t.Errorf("status: %d", he.Code)
		}
	})
}
