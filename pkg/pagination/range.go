package pagination

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
)

var ErrNotRange = errors.New("not a range")

var rangeSyntax = regexp.MustCompile(`^[0-9.,\-\s]+$`)

// ParseRange parses a numeric range query.
//
// Syntax is a comma separated list of terms, where each term is one of
//
//   - "a": exactly a
//   - "a-b": a <= x <= b
//   - "a-": a <= x
//   - "-b": x <= b
//
// For example, "1,3,5-7" matches 1, 3, 5, 6 and 7.
//
// # Returns
//
// - []kdb.Range: ranges of terms.
//
// - error: ErrNotRange if s does not look like a range query at all,
// or another error if it is malformed.
func ParseRange(s string) ([]kdb.Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || !rangeSyntax.MatchString(s) {
		return nil, ErrNotRange
	}

	ranges := []kdb.Range{}
	for _, term := range strings.Split(s, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			return nil, fmt.Errorf("empty term in range: %q", s)
		}

		lo, hi, isRange := strings.Cut(term, "-")
		if !isRange {
			v, err := parseNumber(term)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, kdb.Range{Min: &v, Max: &v})
			continue
		}

		lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
		if lo == "" && hi == "" {
			return nil, fmt.Errorf("range without bounds: %q", term)
		}
		r := kdb.Range{}
		if lo != "" {
			v, err := parseNumber(lo)
			if err != nil {
				return nil, err
			}
			r.Min = &v
		}
		if hi != "" {
			v, err := parseNumber(hi)
			if err != nil {
				return nil, err
			}
			r.Max = &v
		}
		if r.Min != nil && r.Max != nil && *r.Max < *r.Min {
			return nil, fmt.Errorf("empty range: %q", term)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

// ParseCondition builds a condition on field from a query value.
//
// Range queries become numeric conditions, and others are compared as strings.
func ParseCondition(field string, value string) (kdb.Condition, error) {
	ranges, err := ParseRange(value)
	if errors.Is(err, ErrNotRange) {
		return kdb.Condition{Field: field, Equal: value}, nil
	} else if err != nil {
		return kdb.Condition{}, err
	}
	return kdb.Condition{Field: field, Ranges: ranges}, nil
}
