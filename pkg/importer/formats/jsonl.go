package formats

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lmfdb/lmfdb/pkg/importer"
)

// JSONL parses a JSON object per line.
//
// The label is the value of LabelKey in the object. It stays in fields.
type JSONL struct {
	LabelKey string
}

var _ importer.Parser = JSONL{}

func (j JSONL) Parse(line string) (string, map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var label string
	switch v := fields[j.LabelKey].(type) {
	case string:
		label = v
	case float64:
		label = strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return "", nil, fmt.Errorf("%w: no %q", ErrMalformed, j.LabelKey)
	default:
		return "", nil, fmt.Errorf("%w: %q should be a string, but %T", ErrMalformed, j.LabelKey, v)
	}
	if label == "" {
		return "", nil, fmt.Errorf("%w: empty %q", ErrMalformed, j.LabelKey)
	}
	return label, fields, nil
}
