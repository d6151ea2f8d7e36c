// formats are line parsers of importer.
package formats

import (
	"fmt"

	"github.com/lmfdb/lmfdb/pkg/importer"
)

const (
	AllCurves  = "allcurves"
	JSONLines  = "jsonl"
	DefaultKey = "label"
)

// Names of supported formats.
var Names = []string{AllCurves, JSONLines}

// Get returns the parser of the format.
//
// # Args
//
// - name: format name, one of Names.
//
// - labelKey: key of labels in JSON lines. Empty means DefaultKey. Ignored by other formats.
func Get(name string, labelKey string) (importer.Parser, error) {
	switch name {
	case AllCurves:
		return CremonaAllCurves{}, nil
	case JSONLines:
		if labelKey == "" {
			labelKey = DefaultKey
		}
		return JSONL{LabelKey: labelKey}, nil
	}
	return nil, fmt.Errorf("unknown format: %s (supported: %v)", name, Names)
}
