package handlers

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lmfdb/lmfdb/pkg/ajax"
	binderr "github.com/lmfdb/lmfdb/pkg/api/errors"
	apirecords "github.com/lmfdb/lmfdb/pkg/api/types/records"
	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/record"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	"github.com/lmfdb/lmfdb/pkg/pagination"
)

func GetRecordHandler(r record.Interface, collectionParam string, labelParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		collection, label := c.Param(collectionParam), c.Param(labelParam)
		if err := domain.ValidateRecordKey(collection, label); err != nil {
			return binderr.FromDomain(err)
		}

		found, err := r.Database().Get(ctx, collection, label)
		if err != nil {
			return binderr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apirecords.ComposeDetail(found))
	}
}

// query parameters which are not conditions.
var reservedParams = []string{"page", "per_page", "sort"}

// FindRecordsHandler searches records in a collection.
//
// Query parameters other than page, per_page and sort are conditions on fields.
// Each of them is a range query (see pagination.ParseRange) or a string to be equal.
//
// The next page is available both as URL, and as a pending callback in pool
// rendering the next page as html list items.
// A page with the callback is "Cache-Control: no-store", since its nonce can be taken only once.
func FindRecordsHandler(r record.Interface, pool *ajax.Pool, ajaxPrefix string, collectionParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		collection := c.Param(collectionParam)
		if err := domain.ValidateRecordKey(collection, "-"); err != nil {
			return binderr.FromDomain(err)
		}

		params := c.QueryParams()
		page, err := pagination.FromQuery(params)
		if err != nil {
			return binderr.BadRequest("", err)
		}
		query, err := recordQuery(params)
		if err != nil {
			return binderr.FromDomain(err)
		}

		find := func(ctx context.Context, p pagination.Pagination) ([]domain.Record, pagination.Pagination, error) {
			q := query
			q.Offset = p.Offset()
			q.Limit = p.PerPage
			found, total, err := r.Database().Find(ctx, collection, q)
			if err != nil {
				return nil, p, err
			}
			return found, p.WithTotal(total), nil
		}

		found, page, err := find(ctx, page)
		if err != nil {
			return binderr.FromDomain(err)
		}

		resp := apirecords.ComposePage(found, page)
		if page.HasNext() {
			u := *req.URL
			u.RawQuery = page.Next().Query(params).Encode()
			resp.Next = u.String()

			first := page.Next()
			more, err := pool.MoreURL(ajaxPrefix, "more", func(ctx context.Context, n int) (string, bool, error) {
				p := first
				p.Page = n
				found, p, err := find(ctx, p)
				if err != nil {
					return "", false, err
				}
				return listItems(req.URL.Path, found), p.HasNext(), nil
			}, first.Page)
			if err != nil {
				return binderr.InternalServerError(err)
			}
			resp.AjaxMore = more
			c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func recordQuery(params url.Values) (kdb.RecordQuery, error) {
	query := kdb.RecordQuery{SortBy: params.Get("sort")}
	if query.SortBy != "" {
		if err := domain.ValidateFieldName(query.SortBy); err != nil {
			return kdb.RecordQuery{}, err
		}
	}

	fields := make([]string, 0, len(params))
	for field := range params {
		if slices.Contains(reservedParams, field) {
			continue
		}
		fields = append(fields, field)
	}
	slices.Sort(fields)

	for _, field := range fields {
		if err := domain.ValidateFieldName(field); err != nil {
			return kdb.RecordQuery{}, err
		}
		cond, err := pagination.ParseCondition(field, params.Get(field))
		if err != nil {
			return kdb.RecordQuery{}, fmt.Errorf("%w: query on %s: %w", kerr.ErrInvalidRecord, field, err)
		}
		query.Conditions = append(query.Conditions, cond)
	}
	return query, nil
}

func listItems(base string, records []domain.Record) string {
	base = strings.TrimSuffix(base, "/")
	b := new(strings.Builder)
	for _, r := range records {
		label := html.EscapeString(r.Label)
		fmt.Fprintf(b, `<li><a href="%s/%s/">%s</a></li>`, base, html.EscapeString(url.PathEscape(r.Label)), label)
	}
	return b.String()
}
