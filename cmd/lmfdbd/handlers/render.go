package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	binderr "github.com/lmfdb/lmfdb/pkg/api/errors"
	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl"
)

// RenderKnowlHandler responds a knowl as html fragment.
//
// With query "footer=1", links to the knowl are appended.
func RenderKnowlHandler(k knowl.Interface, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param(param)
		if err := domain.ValidateKnowlId(id); err != nil {
			return binderr.FromDomain(err)
		}

		out, err := k.Render(ctx, id, knowl.RenderOption{Footer: isTrue(c.QueryParam("footer"))})
		if err != nil {
			return binderr.FromDomain(err)
		}
		return c.HTML(http.StatusOK, out)
	}
}

// PreviewKnowlHandler renders the form value "content" as the content of a knowl.
//
// Nothing is saved.
func PreviewKnowlHandler(k knowl.Interface, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param(param)
		if err := domain.ValidateKnowlId(id); err != nil {
			return binderr.FromDomain(err)
		}

		content := c.FormValue("content")
		out, err := k.Render(ctx, id, knowl.RenderOption{
			Footer:          isTrue(c.QueryParam("footer")),
			ContentOverride: &content,
		})
		if err != nil {
			return binderr.FromDomain(err)
		}
		return c.HTML(http.StatusOK, out)
	}
}

func isTrue(s string) bool {
	switch s {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
