package ajax

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
)

// URL is the path to take the callback of nonce, under prefix (e.g. "/callback_ajax/").
func URL(prefix string, nonce string) string {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + url.PathEscape(nonce) + "/"
}

// Pager renders a page of something.
//
// # Returns
//
// - string: html fragment of the page.
//
// - bool: true if there is a next page.
//
// - error
type Pager func(ctx context.Context, page int) (string, bool, error)

// MoreURL registers page of pager as a non-sticky callback, and returns its URL.
//
// The callback renders the page, followed by a link to the next page when it exists.
func (p *Pool) MoreURL(prefix string, text string, pager Pager, page int) (string, error) {
	nonce, err := p.Register(func(ctx context.Context) (string, error) {
		fragment, hasNext, err := pager(ctx, page)
		if err != nil {
			return "", err
		}
		if !hasNext {
			return fragment, nil
		}
		link, err := p.More(prefix, text, pager, page+1)
		if err != nil {
			return "", err
		}
		return fragment + link, nil
	}, false)
	if err != nil {
		return "", err
	}
	return URL(prefix, nonce), nil
}

// More is a "load more" link for page of pager.
//
// The link is wrapped in a span, and scripts on pages replace the span with the callback result.
func (p *Pool) More(prefix string, text string, pager Pager, page int) (string, error) {
	u, err := p.MoreURL(prefix, text, pager, page)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`<span class="ajax-more"><a href="%s" class="ajax-more-link">%s</a></span>`,
		html.EscapeString(u), html.EscapeString(text),
	), nil
}
