package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lmfdb/lmfdb/pkg/ajax"
	binderr "github.com/lmfdb/lmfdb/pkg/api/errors"
)

// AjaxHandler runs the pending callback registered under the nonce.
//
// Unknown or expired nonces are answered with ajax.Expired fragment,
// or 410 Gone when the client accepts only JSON.
func AjaxHandler(pool *ajax.Pool, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		callback, ok := pool.Take(c.Param(param))
		if !ok {
			if wantsJSON(req) {
				return binderr.Gone("the content has expired. reload the page.")
			}
			return c.HTML(http.StatusOK, ajax.Expired)
		}

		out, err := callback(req.Context())
		if err != nil {
			return binderr.FromDomain(err)
		}
		return c.HTML(http.StatusOK, out)
	}
}

func wantsJSON(req *http.Request) bool {
	accept := req.Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}
