// importer loads label-keyed records into collections.
//
// Each record is upserted: fields of a stored record are merged with
// incoming ones, so importing the same input twice leaves the same records.
package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
	"github.com/lmfdb/lmfdb/pkg/metrics"
	"github.com/lmfdb/lmfdb/pkg/utils/retry"
)

type Outcome int

const (
	// a new record is written.
	Inserted Outcome = iota + 1
	// a stored record is changed.
	Updated
	// nothing is written.
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Parser reads a line of input into a record.
type Parser interface {
	// Parse a line.
	//
	// # Returns
	//
	// - string: label of the record.
	//
	// - map[string]any: fields of the record.
	//
	// - error: when the line is malformed.
	Parse(line string) (string, map[string]any, error)
}

type Importer struct {
	db      kdb.RecordInterface
	policy  domain.ConflictPolicy
	backoff func() retry.Backoff
	logger  *log.Logger
}

type Option func(*Importer) *Importer

// WithBackoff sets backoff between retries on concurrent writes.
//
// newBackoff is called once per record.
func WithBackoff(newBackoff func() retry.Backoff) Option {
	return func(i *Importer) *Importer {
		i.backoff = newBackoff
		return i
	}
}

// WithLogger sets where rejected lines are reported.
func WithLogger(logger *log.Logger) Option {
	return func(i *Importer) *Importer {
		i.logger = logger
		return i
	}
}

func New(db kdb.RecordInterface, policy domain.ConflictPolicy, options ...Option) *Importer {
	i := &Importer{
		db:     db,
		policy: policy,
		backoff: func() retry.Backoff {
			return retry.Limited(5, retry.ExponentialBackoff(20*time.Millisecond, 2))
		},
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		i = opt(i)
	}
	return i
}

// Upsert merges fields into the record (collection, label).
//
// When another writer updates the record concurrently, it reads the record again and retries.
//
// # Returns
//
// - Outcome: what is done.
//
// - error: FieldCollision when the policy is Raise and fields collide,
// ErrConflict when retries are exhausted, or errors from the storage.
func (i *Importer) Upsert(ctx context.Context, collection string, label string, fields map[string]any) (Outcome, error) {
	if err := domain.ValidateRecordKey(collection, label); err != nil {
		return 0, err
	}

	outcome, err := retry.Blocking(ctx, i.backoff(), func() (Outcome, error) {
		var version int64
		var stored map[string]any
		if rec, err := i.db.Get(ctx, collection, label); errors.Is(err, kerr.ErrMissing) {
			// seeds a fresh record.
		} else if err != nil {
			return 0, err
		} else {
			version = rec.Version
			stored = rec.Fields
		}

		merged, changed, err := domain.Merge(collection, label, stored, fields, i.policy)
		if err != nil {
			return 0, err
		}

		outcome := Updated
		if version == 0 {
			outcome = Inserted
		} else if !changed {
			return Unchanged, nil
		}

		if _, err := i.db.Put(
			ctx,
			domain.Record{Collection: collection, Label: label, Fields: merged},
			version,
		); err != nil {
			if errors.Is(err, kerr.ErrConflict) {
				return 0, fmt.Errorf("%w: %w", retry.ErrRetry, err)
			}
			return 0, err
		}
		return outcome, nil
	})
	if err != nil {
		return 0, xe.Wrap(err)
	}
	metrics.ImportRecords.WithLabelValues(collection, outcome.String()).Inc()
	return outcome, nil
}

// Rejection is an input line which is skipped.
type Rejection struct {
	Source string
	Line   int
	Reason error
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s:%d: %s", r.Source, r.Line, r.Reason)
}

type Summary struct {
	Inserted  int
	Updated   int
	Unchanged int

	Rejections []Rejection
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"inserted: %d, updated: %d, unchanged: %d, rejected: %d",
		s.Inserted, s.Updated, s.Unchanged, len(s.Rejections),
	)
}

// Add counts up other into s.
func (s *Summary) Add(other Summary) {
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
	s.Rejections = append(s.Rejections, other.Rejections...)
}

// Run imports records in r into the collection.
//
// Blank lines and lines starting with "#" are ignored.
// Malformed lines are reported and skipped.
// Other errors, including field collisions, abort the run.
//
// # Args
//
// - ctx
//
// - collection: where records go.
//
// - source: name of the input, used in reports.
//
// - parser: Parser of lines.
//
// - r: input.
//
// # Returns
//
// - Summary: counts of records processed until the run ends.
//
// - error
func (i *Importer) Run(ctx context.Context, collection string, source string, parser Parser, r io.Reader) (Summary, error) {
	summary := Summary{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineno := 0
	for scanner.Scan() {
		lineno += 1
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		label, fields, err := parser.Parse(line)
		if err != nil {
			rej := Rejection{Source: source, Line: lineno, Reason: err}
			i.logger.Printf("rejected: %s", rej)
			summary.Rejections = append(summary.Rejections, rej)
			metrics.ImportRecords.WithLabelValues(collection, "rejected").Inc()
			continue
		}

		outcome, err := i.Upsert(ctx, collection, label, fields)
		if errors.Is(err, kerr.ErrInvalidRecord) {
			rej := Rejection{Source: source, Line: lineno, Reason: err}
			i.logger.Printf("rejected: %s", rej)
			summary.Rejections = append(summary.Rejections, rej)
			metrics.ImportRecords.WithLabelValues(collection, "rejected").Inc()
			continue
		} else if err != nil {
			return summary, fmt.Errorf("%s:%d: %w", source, lineno, err)
		}

		switch outcome {
		case Inserted:
			summary.Inserted += 1
		case Updated:
			summary.Updated += 1
		case Unchanged:
			summary.Unchanged += 1
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("%s: %w", source, err)
	}
	return summary, nil
}
