package records

import (
	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/pagination"
	"github.com/lmfdb/lmfdb/pkg/utils"
	"github.com/lmfdb/lmfdb/pkg/utils/rfctime"
)

type Detail struct {
	Collection string           `json:"collection"`
	Label      string           `json:"label"`
	Fields     map[string]any   `json:"fields"`
	Version    int64            `json:"version"`
	UpdatedAt  *rfctime.RFC3339 `json:"updated_at,omitempty"`
}

func ComposeDetail(r domain.Record) Detail {
	d := Detail{
		Collection: r.Collection,
		Label:      r.Label,
		Fields:     r.Fields,
		Version:    r.Version,
	}
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	if !r.UpdatedAt.IsZero() {
		t := rfctime.RFC3339(r.UpdatedAt)
		d.UpdatedAt = &t
	}
	return d
}

// Page is a page of search results.
type Page struct {
	Records []Detail `json:"records"`

	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`

	// 1-based index of the first and last records in this page. 0 for empty pages.
	Start int `json:"start"`
	End   int `json:"end"`

	// URL to get the next page. Empty if this is the last page.
	Next string `json:"next,omitempty"`

	// URL of the pending callback rendering the next page. Empty if this is the last page.
	AjaxMore string `json:"ajax_more,omitempty"`
}

func ComposePage(records []domain.Record, p pagination.Pagination) Page {
	return Page{
		Records: utils.Map(records, ComposeDetail),
		Page:    p.Page,
		PerPage: p.PerPage,
		Pages:   p.Pages(),
		Total:   p.Total,
		Start:   p.Start(),
		End:     p.End(),
	}
}
