// render converts knowl content into html fragments.
//
// Content is markdown with math and macros. Math is passed through as it is,
// to be typeset by the browser. Macros are expanded:
//
//   - {{ KNOWL('id', title='text') }} becomes a link to the knowl.
//   - {{ KNOWL_INC('id') }} becomes the rendered content of the knowl.
//
// Macros which can not be parsed are left as escaped text.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"slices"
	"strings"

	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

// Loader looks up a knowl.
//
// It reports false when the knowl does not exist.
type Loader func(ctx context.Context, id string) (domain.Knowl, bool, error)

type Renderer struct {
	md         goldmark.Markdown
	load       Loader
	maxDepth   int
	searchBase string
}

type Option func(*Renderer) *Renderer

// WithMaxDepth sets how deep KNOWL_INC can be nested. default = 5
func WithMaxDepth(depth int) Option {
	return func(r *Renderer) *Renderer {
		r.maxDepth = depth
		return r
	}
}

// WithSearchBase sets the base url of hashtag links. default = "/knowledge/"
func WithSearchBase(base string) Option {
	return func(r *Renderer) *Renderer {
		r.searchBase = base
		return r
	}
}

func New(load Loader, options ...Option) *Renderer {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
			goldmark.WithRendererOptions(ghtml.WithUnsafe()),
		),
		load:       load,
		maxDepth:   5,
		searchBase: "/knowledge/",
	}
	for _, opt := range options {
		r = opt(r)
	}
	return r
}

// Render converts content of knowl id into html.
//
// Missing or malformed parts of content are rendered as placeholders or text.
// Errors are returned only when Loader fails.
func (r *Renderer) Render(ctx context.Context, id string, content string) (string, error) {
	return r.render(ctx, content, []string{id})
}

// Markdown converts content into html, without expanding macros.
//
// Math spans are kept byte-for-byte.
func (r *Renderer) Markdown(content string) (string, error) {
	m := mask(content)
	out, err := r.convert(m.text)
	if err != nil {
		return "", err
	}
	return m.unmask(
		out,
		func(s span) string {
			switch s.kind {
			case hashtagSpan:
				return r.hashtag(s.text)
			case macroSpan:
				return html.EscapeString(s.text)
			}
			return s.text
		},
		func(span) bool { return false },
	), nil
}

func (r *Renderer) convert(src string) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.md.Convert([]byte(src), buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// render content, as a knowl on top of stack.
func (r *Renderer) render(ctx context.Context, content string, stack []string) (string, error) {
	m := mask(content)
	out, err := r.convert(m.text)
	if err != nil {
		return "", err
	}

	var loadErr error
	result := m.unmask(
		out,
		func(s span) string {
			switch s.kind {
			case mathSpan:
				return s.text
			case hashtagSpan:
				return r.hashtag(s.text)
			}

			mc, err := parseMacro(s.text)
			if err != nil || domain.ValidateKnowlId(mc.Id) != nil {
				return html.EscapeString(s.text)
			}
			expanded, err := r.expand(ctx, mc, stack)
			if err != nil {
				if loadErr == nil {
					loadErr = err
				}
				return ""
			}
			return expanded
		},
		func(s span) bool {
			if s.kind != macroSpan {
				return false
			}
			mc, err := parseMacro(s.text)
			return err == nil && mc.Name == macroKnowlInc
		},
	)
	if loadErr != nil {
		return "", loadErr
	}
	return result, nil
}

func (r *Renderer) expand(ctx context.Context, mc macro, stack []string) (string, error) {
	switch mc.Name {
	case macroKnowl:
		return r.link(ctx, mc)
	case macroKnowlInc:
		return r.include(ctx, mc, stack)
	}
	return "", fmt.Errorf("%w: %s", errMalformed, mc.Name)
}

// link renders <a> to the knowl.
func (r *Renderer) link(ctx context.Context, mc macro) (string, error) {
	title, explicit := mc.Kwargs["title"]
	if !explicit {
		k, found, err := r.load(ctx, mc.Id)
		if err != nil {
			return "", err
		}
		if found && k.Title != "" {
			title = k.Title
		} else {
			title = mc.Id
		}
	}

	rest := url.Values{}
	for k, v := range mc.Kwargs {
		if k == "title" {
			continue
		}
		rest.Set(k, v)
	}

	return fmt.Sprintf(
		`<a title="%s [%s]" knowl="%s" kwargs="%s">%s</a>`,
		html.EscapeString(title), html.EscapeString(mc.Id), html.EscapeString(mc.Id),
		html.EscapeString(rest.Encode()), html.EscapeString(title),
	), nil
}

// include renders the knowl recursively.
func (r *Renderer) include(ctx context.Context, mc macro, stack []string) (string, error) {
	if slices.Contains(stack, mc.Id) || r.maxDepth < len(stack) {
		return placeholder("knowl-cycle", mc.Id), nil
	}

	k, found, err := r.load(ctx, mc.Id)
	if err != nil {
		return "", err
	}
	if !found {
		return placeholder("knowl-missing", mc.Id), nil
	}

	inner, err := r.render(ctx, k.Content, append(slices.Clip(stack), mc.Id))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`<div class="knowl-include" knowl="%s">%s</div>`,
		html.EscapeString(mc.Id), strings.TrimSpace(inner),
	), nil
}

func placeholder(class string, id string) string {
	return fmt.Sprintf(
		`<div class="knowl-include %s" knowl="%s"></div>`,
		class, html.EscapeString(id),
	)
}

func (r *Renderer) hashtag(tag string) string {
	word := strings.TrimPrefix(tag, "#")
	return fmt.Sprintf(
		`<a title="Knowl search for %s" notknowl="1" href="%s?search=%s">%s</a>`,
		html.EscapeString(tag),
		html.EscapeString(r.searchBase),
		url.QueryEscape("#"+word),
		html.EscapeString(tag),
	)
}
