package flag

import (
	"fmt"
	"strings"

	"github.com/lmfdb/lmfdb/pkg/domain"
)

// Argslice is a repeatable string flag.
type Argslice []string

func (s *Argslice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

// Set appends v. Comma separated values are split.
func (s *Argslice) Set(v string) error {
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*s = append(*s, item)
		}
	}
	return nil
}

// ConflictPolicy is a flag of domain.ConflictPolicy: raise, overwrite or keep-first.
type ConflictPolicy domain.ConflictPolicy

func (p *ConflictPolicy) String() string {
	if p == nil {
		return domain.Raise.String()
	}
	return domain.ConflictPolicy(*p).String()
}

func (p *ConflictPolicy) Set(v string) error {
	policy, err := domain.AsConflictPolicy(strings.ToLower(v))
	if err != nil {
		return fmt.Errorf("%w. it should be one of raise, overwrite or keep-first", err)
	}
	*p = ConflictPolicy(policy)
	return nil
}

func (p *ConflictPolicy) Policy() domain.ConflictPolicy {
	if p == nil {
		return domain.Raise
	}
	return domain.ConflictPolicy(*p)
}
