package domain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
)

// KnowlQuality is the review state of a Knowl.
type KnowlQuality string

const (
	QualityBeta     KnowlQuality = "beta"
	QualityOk       KnowlQuality = "ok"
	QualityReviewed KnowlQuality = "reviewed"
)

func (q KnowlQuality) String() string {
	return string(q)
}

// AsKnowlQuality parses quality. Empty string is QualityBeta.
func AsKnowlQuality(s string) (KnowlQuality, error) {
	switch KnowlQuality(strings.ToLower(s)) {
	case "", QualityBeta:
		return QualityBeta, nil
	case QualityOk:
		return QualityOk, nil
	case QualityReviewed:
		return QualityReviewed, nil
	}
	return "", fmt.Errorf("unknown knowl quality: %s", s)
}

// Knowl is a short piece of annotation, transcluded into pages by its Id.
type Knowl struct {
	// dotted id, like "ec.q.torsion_order".
	Id string

	Title   string
	Content string
	Quality KnowlQuality

	// users who have edited this knowl, in order of their first edit.
	Authors    []string
	LastAuthor string

	Timestamp time.Time

	// search index. See Keywords.
	Keywords []string

	// incremented on each write. Zero means "not stored yet".
	Version int64
}

// Placeholder is the Knowl standing in for a missing one.
//
// It has the id, and nothing else.
func Placeholder(id string) Knowl {
	return Knowl{Id: id, Quality: QualityBeta}
}

// Category of knowl; its id up to the first dot.
func (k Knowl) Category() string {
	return KnowlCategory(k.Id)
}

func (k Knowl) Equal(o Knowl) bool {
	return k.Id == o.Id &&
		k.Title == o.Title &&
		k.Content == o.Content &&
		k.Quality == o.Quality &&
		slices.Equal(k.Authors, o.Authors) &&
		k.LastAuthor == o.LastAuthor &&
		k.Timestamp.Equal(o.Timestamp) &&
		slices.Equal(k.Keywords, o.Keywords) &&
		k.Version == o.Version
}

var knowlIdPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// ValidateKnowlId checks id is acceptable as a knowl id.
//
// # Returns
//
// - error: nil if valid. Otherwise, an error wrapping ErrInvalidKnowlId.
func ValidateKnowlId(id string) error {
	if !knowlIdPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", kerr.ErrInvalidKnowlId, id)
	}
	if strings.HasPrefix(id, ".") || strings.HasSuffix(id, ".") || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q has an empty segment", kerr.ErrInvalidKnowlId, id)
	}
	return nil
}

func KnowlCategory(id string) string {
	cat, _, _ := strings.Cut(id, ".")
	return cat
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// Keywords builds the search index of a knowl.
//
// It consists of the id itself, each segment of the id,
// and words of 3 or more characters from the title and the content.
// Keywords are lowercased, deduplicated and sorted.
func Keywords(id string, title string, content string) []string {
	set := map[string]struct{}{}
	if id != "" {
		set[id] = struct{}{}
	}
	for _, seg := range strings.Split(id, ".") {
		if seg != "" {
			set[seg] = struct{}{}
		}
	}
	for _, text := range []string{title, content} {
		for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
			if len(w) < 3 {
				continue
			}
			set[w] = struct{}{}
		}
	}

	kws := make([]string, 0, len(set))
	for k := range set {
		kws = append(kws, k)
	}
	slices.Sort(kws)
	return kws
}

// SearchTokens splits a search query into keyword tokens.
func SearchTokens(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// IndexLetter is the group heading a knowl is listed under in the knowl index.
func IndexLetter(k Knowl) string {
	title := strings.TrimSpace(k.Title)
	if title == "" {
		title = k.Id
	}
	for _, r := range title {
		if unicode.IsLetter(r) {
			return string(unicode.ToUpper(r))
		}
		break
	}
	return "#"
}
