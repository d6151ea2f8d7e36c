package render

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

type spanKind int

const (
	mathSpan spanKind = iota
	macroSpan
	hashtagSpan
)

// span is a part of source which markdown should not touch.
type span struct {
	kind spanKind

	// source text, including delimiters.
	text string
}

// masked is a source whose protected spans are replaced with opaque tokens.
type masked struct {
	text   string
	spans  []span
	tokens []string
}

var hashtagPattern = regexp.MustCompile(`^#[a-zA-Z][a-zA-Z0-9_-]+`)

// pairs of math delimiters, in order of precedence.
var mathDelimiters = []struct{ open, close string }{
	{`$$`, `$$`},
	{`\[`, `\]`},
	{`\(`, `\)`},
	{`$`, `$`},
}

// mask carves protected spans out of src.
//
// Protected spans are math ($$..$$, $..$, \(..\), \[..\]), macros ({{ .. }})
// and hashtags. A delimiter without its closing pair is left as text.
func mask(src string) masked {
	prefix := "lmfdbmask"
	for strings.Contains(src, prefix) {
		prefix += "x"
	}

	m := masked{}
	b := &strings.Builder{}
	protect := func(kind spanKind, text string) {
		tok := prefix + strconv.Itoa(len(m.spans)) + "q"
		m.spans = append(m.spans, span{kind: kind, text: text})
		m.tokens = append(m.tokens, tok)
		b.WriteString(tok)
	}

	i := 0
scan:
	for i < len(src) {
		rest := src[i:]

		switch {
		case strings.HasPrefix(rest, `\$`), strings.HasPrefix(rest, `\\`):
			b.WriteString(rest[:2])
			i += 2
			continue scan
		case strings.HasPrefix(rest, "{{"):
			if end := strings.Index(rest[2:], "}}"); 0 <= end {
				protect(macroSpan, rest[:end+4])
				i += end + 4
				continue scan
			}
		case rest[0] == '#':
			if tag := hashtagPattern.FindString(rest); tag != "" && hashtagBoundary(src, i) {
				protect(hashtagSpan, tag)
				i += len(tag)
				continue scan
			}
		}

		for _, d := range mathDelimiters {
			if !strings.HasPrefix(rest, d.open) {
				continue
			}
			end := closing(rest[len(d.open):], d.close)
			if end < 0 {
				// unterminated. the opening delimiter is just a text.
				b.WriteString(d.open)
				i += len(d.open)
				continue scan
			}
			whole := len(d.open) + end + len(d.close)
			protect(mathSpan, rest[:whole])
			i += whole
			continue scan
		}

		b.WriteByte(src[i])
		i++
	}

	m.text = b.String()
	return m
}

// closing finds the closing delimiter not escaped by a backslash.
//
// "\\$" closes: the backslashes before "$" escape each other.
func closing(s string, delim string) int {
	for from := 0; from < len(s); {
		idx := strings.Index(s[from:], delim)
		if idx < 0 {
			return -1
		}
		at := from + idx
		if delim == "$" && escaped(s, at) {
			from = at + 1
			continue
		}
		return at
	}
	return -1
}

// escaped reports whether s[at] follows an odd run of backslashes.
func escaped(s string, at int) bool {
	n := 0
	for i := at - 1; 0 <= i && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// hashtags should not be glued to a word, nor be a part of entities or urls.
func hashtagBoundary(src string, at int) bool {
	if at == 0 {
		return true
	}
	prev := src[at-1]
	switch {
	case 'a' <= prev && prev <= 'z', 'A' <= prev && prev <= 'Z', '0' <= prev && prev <= '9':
		return false
	}
	return !strings.ContainsRune("_&/(=\"'#", rune(prev))
}

// unmask puts spans back into html.
//
// replace gives the html of each span. When block reports true for a span,
// a paragraph wrapping only the span is replaced as a whole, and a paragraph
// sharing the span with other text is closed before the span and reopened after it.
func (m masked) unmask(html string, replace func(span) string, block func(span) bool) string {
	if len(m.spans) == 0 {
		return html
	}
	outs := make([]string, len(m.spans))
	blocks := []int{}
	for i, s := range m.spans {
		outs[i] = replace(s)
		if block(s) {
			blocks = append(blocks, i)
		}
	}

	// the replacer tries pairs in argument order. Paragraph-wrapped ones go first.
	pairs := make([]string, 0, 4*len(m.spans))
	for _, i := range blocks {
		pairs = append(pairs, "<p>"+m.tokens[i]+"</p>", outs[i])
	}
	for i := range m.spans {
		if slices.Contains(blocks, i) {
			continue
		}
		pairs = append(pairs, m.tokens[i], outs[i])
	}
	html = strings.NewReplacer(pairs...).Replace(html)

	for _, i := range blocks {
		html = breakParagraph(html, m.tokens[i], outs[i])
	}
	return html
}

// breakParagraph replaces tok with out, closing the paragraph around it if any.
func breakParagraph(html string, tok string, out string) string {
	b := &strings.Builder{}
	for {
		at := strings.Index(html, tok)
		if at < 0 {
			b.WriteString(html)
			break
		}
		before := html[:at]
		b.WriteString(before)
		done := b.String()
		if strings.LastIndex(done, "<p>") > strings.LastIndex(done, "</p>") {
			b.WriteString("</p>" + out + "<p>")
		} else {
			b.WriteString(out)
		}
		html = html[at+len(tok):]
	}
	return strings.ReplaceAll(b.String(), "<p></p>", "")
}
