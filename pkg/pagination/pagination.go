// pagination splits search results into pages,
// and parses range queries of search forms.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 1000
)

// Pagination is a view of a page in search results.
type Pagination struct {
	// 1-based page number.
	Page    int
	PerPage int

	// number of all results.
	Total int
}

// FromQuery reads "page" and "per_page" query parameters.
//
// Missing parameters are defaulted: page 1, DefaultPerPage.
// per_page over MaxPerPage is truncated.
func FromQuery(query url.Values) (Pagination, error) {
	p := Pagination{Page: 1, PerPage: DefaultPerPage}

	if s := query.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return Pagination{}, fmt.Errorf("page should be a positive integer: %q", s)
		}
		p.Page = page
	}
	if s := query.Get("per_page"); s != "" {
		perPage, err := strconv.Atoi(s)
		if err != nil || perPage < 1 {
			return Pagination{}, fmt.Errorf("per_page should be a positive integer: %q", s)
		}
		p.PerPage = min(perPage, MaxPerPage)
	}
	return p, nil
}

// WithTotal returns a copy of p with Total.
func (p Pagination) WithTotal(total int) Pagination {
	p.Total = total
	return p
}

// Offset is the number of results before this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Pages is the number of pages. It is at least 1.
func (p Pagination) Pages() int {
	if p.Total <= 0 || p.PerPage <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Pagination) HasPrevious() bool {
	return 1 < p.Page
}

func (p Pagination) HasNext() bool {
	return p.Page < p.Pages()
}

// Start is the 1-based index of the first result in this page.
//
// It is 0 when the page is empty.
func (p Pagination) Start() int {
	if p.Total <= p.Offset() {
		return 0
	}
	return p.Offset() + 1
}

// End is the 1-based index of the last result in this page.
func (p Pagination) End() int {
	return min(p.Offset()+p.PerPage, p.Total)
}

// Next is the pagination of the next page.
func (p Pagination) Next() Pagination {
	p.Page += 1
	return p
}

// Query encodes the page into query parameters, merged into base.
func (p Pagination) Query(base url.Values) url.Values {
	q := url.Values{}
	for k, v := range base {
		q[k] = append([]string{}, v...)
	}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
	return q
}
