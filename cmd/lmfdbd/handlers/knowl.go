package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	binderr "github.com/lmfdb/lmfdb/pkg/api/errors"
	apiknowls "github.com/lmfdb/lmfdb/pkg/api/types/knowls"
	"github.com/lmfdb/lmfdb/pkg/auth"
	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl"
)

// OnChange is called after knowls are written.
type OnChange func()

func etag(version int64) string {
	return fmt.Sprintf(`"%d"`, version)
}

// parseIfMatch reads version from If-Match header, like `"3"`.
func parseIfMatch(header string) (*int64, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	header = strings.TrimPrefix(header, "W/")
	v, err := strconv.ParseInt(strings.Trim(header, `"`), 10, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("If-Match should be a version, like \"3\": %s", header)
	}
	return &v, nil
}

func IndexKnowlHandler(k knowl.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		query := knowl.IndexQuery{
			Search:   c.QueryParam("search"),
			Category: c.QueryParam("category"),
		}
		for _, qs := range c.QueryParams()["quality"] {
			for _, q := range strings.Split(qs, ",") {
				if q == "" {
					continue
				}
				quality, err := domain.AsKnowlQuality(q)
				if err != nil {
					return binderr.BadRequest("quality should be one of beta, ok or reviewed", err)
				}
				query.Quality = append(query.Quality, quality)
			}
		}

		groups, err := k.Index(ctx, query)
		if err != nil {
			return binderr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apiknowls.ComposeIndex(groups))
	}
}

// GetKnowlHandler responds a knowl.
//
// Missing knowls are responded as placeholders, with "exists": false.
func GetKnowlHandler(k knowl.Interface, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param(param)
		if err := domain.ValidateKnowlId(id); err != nil {
			return binderr.FromDomain(err)
		}

		found, exists, err := k.Get(ctx, id)
		if err != nil {
			return binderr.FromDomain(err)
		}
		if exists {
			c.Response().Header().Set("ETag", etag(found.Version))
		}
		return c.JSON(http.StatusOK, apiknowls.ComposeDetail(found, exists))
	}
}

// PutKnowlHandler saves a knowl by the editor authorized by auth.Middleware.
//
// The version in the body, or in If-Match header, makes the save conditional.
func PutKnowlHandler(k knowl.Interface, param string, onChange OnChange) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		editor, ok := auth.Editor(c)
		if !ok {
			return binderr.Unauthorized("editor token is required", errors.New("no editor"))
		}

		if ctyp := strings.ToLower(req.Header.Get(echo.HeaderContentType)); !strings.HasPrefix(ctyp, echo.MIMEApplicationJSON) {
			return binderr.BadRequest(
				"unexpected content type. it shoule be application/json", nil,
			)
		}
		body := new(apiknowls.SaveRequest)
		if err := json.NewDecoder(req.Body).Decode(body); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}

		quality := domain.KnowlQuality("")
		if body.Quality != "" {
			q, err := domain.AsKnowlQuality(body.Quality)
			if err != nil {
				return binderr.BadRequest("quality should be one of beta, ok or reviewed", err)
			}
			quality = q
		}

		ifVersion := body.Version
		if ifVersion == nil {
			v, err := parseIfMatch(req.Header.Get("If-Match"))
			if err != nil {
				return binderr.BadRequest("", err)
			}
			ifVersion = v
		}

		saved, err := k.Save(ctx, knowl.SaveRequest{
			Id:        c.Param(param),
			Title:     body.Title,
			Content:   body.Content,
			Quality:   quality,
			Author:    editor.Author(),
			IfVersion: ifVersion,
		})
		if err != nil {
			return binderr.FromDomain(err)
		}
		if onChange != nil {
			onChange()
		}

		c.Response().Header().Set("ETag", etag(saved.Version))
		return c.JSON(http.StatusOK, apiknowls.ComposeDetail(saved, true))
	}
}

func DeleteKnowlHandler(k knowl.Interface, param string, onChange OnChange) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, ok := auth.Editor(c); !ok {
			return binderr.Unauthorized("editor token is required", errors.New("no editor"))
		}

		if err := k.Delete(ctx, c.Param(param)); err != nil {
			return binderr.FromDomain(err)
		}
		if onChange != nil {
			onChange()
		}
		return c.NoContent(http.StatusNoContent)
	}
}
