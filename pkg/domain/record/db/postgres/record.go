package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	kpool "github.com/lmfdb/lmfdb/pkg/conn/db/postgres/pool"
	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/record/db"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
)

// pgRecord stores records of every collection in a single table,
// with their fields in a jsonb column.
type pgRecord struct {
	pool kpool.Pool
}

var _ kdb.RecordInterface = &pgRecord{}

func New(pool kpool.Pool) *pgRecord {
	return &pgRecord{pool: pool}
}

const columns = `"collection", "label", "fields", "version", "updated_at"`

type row interface {
	Scan(dest ...interface{}) error
}

func scan(r row) (domain.Record, error) {
	rec := domain.Record{}
	var fields []byte
	if err := r.Scan(
		&rec.Collection, &rec.Label, &fields, &rec.Version, &rec.UpdatedAt,
	); err != nil {
		return domain.Record{}, err
	}
	// numbers stay json.Number, so that large integers are not rounded.
	dec := json.NewDecoder(bytes.NewReader(fields))
	dec.UseNumber()
	if err := dec.Decode(&rec.Fields); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (p *pgRecord) Get(ctx context.Context, collection string, label string) (domain.Record, error) {
	rec, err := scan(p.pool.QueryRow(
		ctx,
		`select `+columns+` from "record" where "collection" = $1 and "label" = $2`,
		collection, label,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, dberrors.Missing{Table: collection, Identity: label}
	} else if err != nil {
		return domain.Record{}, xe.Wrap(err)
	}
	return rec, nil
}

func (p *pgRecord) Find(ctx context.Context, collection string, query kdb.RecordQuery) ([]domain.Record, int, error) {
	params := []interface{}{}
	placeholder := func(v interface{}) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", len(params))
	}

	where := []string{`"collection" = ` + placeholder(collection)}
	for _, c := range query.Conditions {
		if err := domain.ValidateFieldName(c.Field); err != nil {
			return nil, 0, err
		}
		switch {
		case c.Ranges != nil:
			field := placeholder(c.Field)
			num := `(case when jsonb_typeof("fields" -> ` + field + `::text) = 'number' ` +
				`then ("fields" ->> ` + field + `::text)::float8 end)`
			anyOf := []string{}
			for _, r := range c.Ranges {
				bounds := []string{num + ` is not null`}
				if r.Min != nil {
					bounds = append(bounds, num+` >= `+placeholder(*r.Min)+`::float8`)
				}
				if r.Max != nil {
					bounds = append(bounds, num+` <= `+placeholder(*r.Max)+`::float8`)
				}
				anyOf = append(anyOf, "("+strings.Join(bounds, " and ")+")")
			}
			if len(anyOf) == 0 {
				anyOf = append(anyOf, "false")
			}
			where = append(where, "("+strings.Join(anyOf, " or ")+")")
		case c.In != nil:
			values, err := json.Marshal(c.In)
			if err != nil {
				return nil, 0, xe.Wrap(err)
			}
			where = append(where, fmt.Sprintf(
				`("fields" -> %s::text) in (select jsonb_array_elements(%s::jsonb))`,
				placeholder(c.Field), placeholder(string(values)),
			))
		default:
			contained, err := json.Marshal(map[string]any{c.Field: c.Equal})
			if err != nil {
				return nil, 0, xe.Wrap(err)
			}
			where = append(where, `"fields" @> `+placeholder(string(contained))+`::jsonb`)
		}
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := p.pool.QueryRow(
		ctx, `select count(*) from "record" where `+cond, params...,
	).Scan(&total); err != nil {
		return nil, 0, xe.Wrap(err)
	}

	q := `select ` + columns + ` from "record" where ` + cond
	if query.SortBy != "" {
		if err := domain.ValidateFieldName(query.SortBy); err != nil {
			return nil, 0, err
		}
		q += ` order by "fields" -> ` + placeholder(query.SortBy) + `::text, "label"`
	} else {
		q += ` order by "label"`
	}
	if 0 < query.Limit {
		q += ` limit ` + placeholder(query.Limit)
	}
	if 0 < query.Offset {
		q += ` offset ` + placeholder(query.Offset)
	}

	rows, err := p.pool.Query(ctx, q, params...)
	if err != nil {
		return nil, 0, xe.Wrap(err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, 0, xe.Wrap(err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, xe.Wrap(err)
	}
	return records, total, nil
}

func (p *pgRecord) Put(ctx context.Context, record domain.Record, expectedVersion int64) (domain.Record, error) {
	if err := domain.ValidateRecordKey(record.Collection, record.Label); err != nil {
		return domain.Record{}, err
	}
	fields := record.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return domain.Record{}, xe.Wrap(err)
	}

	var r pgx.Row
	if expectedVersion == 0 {
		r = p.pool.QueryRow(
			ctx,
			`
			insert into "record" ("collection", "label", "fields", "version", "updated_at")
			values ($1, $2, $3::jsonb, 1, now())
			on conflict ("collection", "label") do nothing
			returning `+columns,
			record.Collection, record.Label, string(doc),
		)
	} else {
		r = p.pool.QueryRow(
			ctx,
			`
			update "record" set
				"fields" = $3::jsonb,
				"version" = "version" + 1,
				"updated_at" = now()
			where "collection" = $1 and "label" = $2 and "version" = $4
			returning `+columns,
			record.Collection, record.Label, string(doc), expectedVersion,
		)
	}

	stored, err := scan(r)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, kerr.VersionMismatch{
			Identity: fmt.Sprintf("%s/%s", record.Collection, record.Label),
			Expected: expectedVersion,
		}
	} else if err != nil {
		return domain.Record{}, xe.Wrap(err)
	}
	return stored, nil
}

// EnsureIndex creates a partial expression index over fields of the collection.
func (p *pgRecord) EnsureIndex(ctx context.Context, collection string, fields ...string) error {
	if err := domain.ValidateRecordKey(collection, "-"); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	exprs := make([]string, 0, len(fields))
	for _, f := range fields {
		if err := domain.ValidateFieldName(f); err != nil {
			return err
		}
		exprs = append(exprs, fmt.Sprintf(`("fields" -> '%s')`, f))
	}

	name := strings.ToLower(fmt.Sprintf("record_%s_%s", collection, strings.Join(fields, "_")))
	// names are validated above; DDL can not take bind parameters.
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(
		`create index if not exists "%s" on "record" (%s) where "collection" = '%s'`,
		name, strings.Join(exprs, ", "), collection,
	)); err != nil {
		return xe.Wrap(err)
	}
	return nil
}
