package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	kpool "github.com/lmfdb/lmfdb/pkg/conn/db/postgres/pool"
	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/errors/dberrors"
	kdb "github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
	"github.com/lmfdb/lmfdb/pkg/utils"
)

type pgKnowl struct {
	pool kpool.Pool
}

var _ kdb.KnowlInterface = &pgKnowl{}

func New(pool kpool.Pool) *pgKnowl {
	return &pgKnowl{pool: pool}
}

const columns = `"id", "title", "content", "quality", "authors", "last_author", "timestamp", "keywords", "version"`

type row interface {
	Scan(dest ...interface{}) error
}

func scan(r row) (domain.Knowl, error) {
	k := domain.Knowl{}
	var quality string
	if err := r.Scan(
		&k.Id, &k.Title, &k.Content, &quality,
		&k.Authors, &k.LastAuthor, &k.Timestamp, &k.Keywords, &k.Version,
	); err != nil {
		return domain.Knowl{}, err
	}
	k.Quality = domain.KnowlQuality(quality)
	return k, nil
}

func (p *pgKnowl) Get(ctx context.Context, id string) (domain.Knowl, error) {
	k, err := scan(p.pool.QueryRow(
		ctx,
		`select `+columns+` from "knowl" where "id" = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Knowl{}, dberrors.Missing{Table: "knowl", Identity: id}
	} else if err != nil {
		return domain.Knowl{}, xe.Wrap(err)
	}
	return k, nil
}

func (p *pgKnowl) Put(ctx context.Context, knowl domain.Knowl, ifVersion *int64) (domain.Knowl, error) {
	values := []interface{}{
		knowl.Id, knowl.Title, knowl.Content, string(knowl.Quality),
		nonnull(knowl.Authors), knowl.LastAuthor, knowl.Timestamp, nonnull(knowl.Keywords),
	}

	var query string
	switch {
	case ifVersion == nil:
		query = `
		insert into "knowl" (` + columns + `)
		values ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		on conflict ("id") do update set
			"title" = excluded."title",
			"content" = excluded."content",
			"quality" = excluded."quality",
			"authors" = excluded."authors",
			"last_author" = excluded."last_author",
			"timestamp" = excluded."timestamp",
			"keywords" = excluded."keywords",
			"version" = "knowl"."version" + 1
		returning ` + columns
	case *ifVersion == 0:
		query = `
		insert into "knowl" (` + columns + `)
		values ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		on conflict ("id") do nothing
		returning ` + columns
	default:
		query = `
		update "knowl" set
			"title" = $2,
			"content" = $3,
			"quality" = $4,
			"authors" = $5,
			"last_author" = $6,
			"timestamp" = $7,
			"keywords" = $8,
			"version" = "version" + 1
		where "id" = $1 and "version" = $9
		returning ` + columns
		values = append(values, *ifVersion)
	}

	stored, err := scan(p.pool.QueryRow(ctx, query, values...))
	if errors.Is(err, pgx.ErrNoRows) {
		// only conditional writes can skip.
		return domain.Knowl{}, kerr.VersionMismatch{
			Identity: fmt.Sprintf("knowl %s", knowl.Id), Expected: *ifVersion,
		}
	} else if err != nil {
		return domain.Knowl{}, xe.Wrap(err)
	}
	return stored, nil
}

func (p *pgKnowl) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `delete from "knowl" where "id" = $1`, id)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return dberrors.Missing{Table: "knowl", Identity: id}
	}
	return nil
}

func (p *pgKnowl) Find(ctx context.Context, filter kdb.KnowlFilter) ([]domain.Knowl, error) {
	where := []string{}
	params := []interface{}{}
	placeholder := func(v interface{}) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", len(params))
	}

	if len(filter.Keywords) != 0 {
		where = append(where, `"keywords" @> `+placeholder(filter.Keywords)+`::text[]`)
	}
	if filter.Category != "" {
		where = append(where, `starts_with("id", `+placeholder(filter.Category+".")+`)`)
	}
	if len(filter.Quality) != 0 {
		qs := utils.Map(filter.Quality, domain.KnowlQuality.String)
		where = append(where, `"quality" = any(`+placeholder(qs)+`::varchar[])`)
	}

	query := `select ` + columns + ` from "knowl"`
	if len(where) != 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	query += ` order by "id"`

	rows, err := p.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	knowls := []domain.Knowl{}
	for rows.Next() {
		k, err := scan(rows)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		knowls = append(knowls, k)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return knowls, nil
}

func nonnull(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
