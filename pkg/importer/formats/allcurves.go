package formats

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lmfdb/lmfdb/pkg/importer"
)

var ErrMalformed = errors.New("malformed line")

// CremonaAllCurves parses lines of Cremona's "allcurves" tables:
//
//	N iso num [a1,a2,a3,a4,a6] r t
//
// for example, "11 a 1 [0,-1,1,-10,-20] 0 5" is the curve labeled "11a1".
type CremonaAllCurves struct{}

var _ importer.Parser = CremonaAllCurves{}

var isoPattern = regexp.MustCompile(`^[a-z]+$`)

func (CremonaAllCurves) Parse(line string) (string, map[string]any, error) {
	cols := strings.Fields(line)
	if len(cols) != 6 {
		return "", nil, fmt.Errorf("%w: expected 6 columns, but %d", ErrMalformed, len(cols))
	}

	conductor, err := strconv.ParseInt(cols[0], 10, 64)
	if err != nil || conductor < 1 {
		return "", nil, fmt.Errorf("%w: conductor %q", ErrMalformed, cols[0])
	}
	iso := cols[1]
	if !isoPattern.MatchString(iso) {
		return "", nil, fmt.Errorf("%w: isogeny class %q", ErrMalformed, iso)
	}
	number, err := strconv.ParseInt(cols[2], 10, 64)
	if err != nil || number < 1 {
		return "", nil, fmt.Errorf("%w: curve number %q", ErrMalformed, cols[2])
	}
	ainvs, err := parseAInvariants(cols[3])
	if err != nil {
		return "", nil, err
	}
	rank, err := strconv.ParseInt(cols[4], 10, 64)
	if err != nil || rank < 0 {
		return "", nil, fmt.Errorf("%w: rank %q", ErrMalformed, cols[4])
	}
	torsion, err := strconv.ParseInt(cols[5], 10, 64)
	if err != nil || torsion < 1 {
		return "", nil, fmt.Errorf("%w: torsion order %q", ErrMalformed, cols[5])
	}

	isoClass := cols[0] + iso
	label := isoClass + cols[2]
	return label, map[string]any{
		"label":     label,
		"conductor": conductor,
		"iso":       iso,
		"iso_class": isoClass,
		"number":    number,
		"ainvs":     ainvs,
		"rank":      rank,
		"torsion":   torsion,
	}, nil
}

// parseAInvariants parses "[a1,a2,a3,a4,a6]".
//
// a-invariants which do not fit in int64 are kept as decimal strings.
func parseAInvariants(s string) ([]any, error) {
	inner, ok := strings.CutPrefix(s, "[")
	if ok {
		inner, ok = strings.CutSuffix(inner, "]")
	}
	if !ok {
		return nil, fmt.Errorf("%w: a-invariants %q", ErrMalformed, s)
	}
	terms := strings.Split(inner, ",")
	if len(terms) != 5 {
		return nil, fmt.Errorf("%w: expected 5 a-invariants, but %d", ErrMalformed, len(terms))
	}

	ainvs := make([]any, 0, len(terms))
	for _, t := range terms {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			ainvs = append(ainvs, v)
			continue
		}
		if !isInteger(t) {
			return nil, fmt.Errorf("%w: a-invariant %q", ErrMalformed, t)
		}
		ainvs = append(ainvs, t)
	}
	return ainvs, nil
}

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

func isInteger(s string) bool {
	return integerPattern.MatchString(s)
}
