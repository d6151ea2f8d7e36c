package render

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type macroName string

const (
	// link to a knowl. {{ KNOWL('id', title='text') }}
	macroKnowl macroName = "KNOWL"
	// transclusion of a knowl. {{ KNOWL_INC('id') }}
	macroKnowlInc macroName = "KNOWL_INC"
)

// macro is a parsed {{ NAME('id', key='value', ...) }}.
type macro struct {
	Name   macroName
	Id     string
	Kwargs map[string]string
}

var errMalformed = errors.New("malformed macro")

// parseMacro parses the text of a macro span, including braces.
func parseMacro(text string) (macro, error) {
	inner, ok := strings.CutPrefix(text, "{{")
	if !ok {
		return macro{}, errMalformed
	}
	if inner, ok = strings.CutSuffix(inner, "}}"); !ok {
		return macro{}, errMalformed
	}

	p := &macroParser{src: strings.TrimSpace(inner)}

	name := p.ident()
	switch macroName(name) {
	case macroKnowl, macroKnowlInc:
	default:
		return macro{}, fmt.Errorf("%w: unknown macro %q", errMalformed, name)
	}
	if !p.consume('(') {
		return macro{}, fmt.Errorf("%w: ( is expected after %s", errMalformed, name)
	}

	id, err := p.str()
	if err != nil {
		return macro{}, err
	}

	m := macro{Name: macroName(name), Id: id, Kwargs: map[string]string{}}
	for p.consume(',') {
		key := p.ident()
		if key == "" {
			return macro{}, fmt.Errorf("%w: keyword is expected", errMalformed)
		}
		if !p.consume('=') {
			return macro{}, fmt.Errorf("%w: = is expected after %s", errMalformed, key)
		}
		value, err := p.str()
		if err != nil {
			return macro{}, err
		}
		m.Kwargs[key] = value
	}
	if !p.consume(')') {
		return macro{}, fmt.Errorf("%w: ) is expected", errMalformed)
	}
	if p.skipSpace(); p.pos != len(p.src) {
		return macro{}, fmt.Errorf("%w: trailing %q", errMalformed, p.src[p.pos:])
	}
	return m, nil
}

type macroParser struct {
	src string
	pos int
}

func (p *macroParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *macroParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *macroParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || start < p.pos && '0' <= c && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// str reads a quoted string. Both of '...' and "..." are accepted,
// and backslash escapes the next character.
func (p *macroParser) str() (string, error) {
	p.skipSpace()
	if p.pos == len(p.src) {
		return "", fmt.Errorf("%w: string is expected", errMalformed)
	}
	quote := p.src[p.pos]
	if quote != '\'' && quote != '"' {
		return "", fmt.Errorf("%w: string is expected", errMalformed)
	}
	p.pos++

	b := &strings.Builder{}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("%w: unterminated string", errMalformed)
}
