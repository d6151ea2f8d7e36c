package knowl

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"github.com/lmfdb/lmfdb/pkg/domain"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl/db"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl/render"
	xe "github.com/lmfdb/lmfdb/pkg/errors"
	"github.com/lmfdb/lmfdb/pkg/metrics"
	"github.com/lmfdb/lmfdb/pkg/utils/retry"
)

type Interface interface {
	Database() db.KnowlInterface

	// Get a knowl.
	//
	// For a missing id, it returns the placeholder knowl and false, not an error.
	//
	// # Returns
	//
	// - domain.Knowl: found knowl, or placeholder.
	//
	// - bool: true if the knowl exists.
	//
	// - error: errors from the storage.
	Get(ctx context.Context, id string) (domain.Knowl, bool, error)

	// Save creates or updates a knowl.
	//
	// # Returns
	//
	// - domain.Knowl: saved knowl.
	//
	// - error: ErrInvalidKnowlId if the id is not valid,
	// ErrConflict if req.IfVersion is not the stored version.
	Save(ctx context.Context, req SaveRequest) (domain.Knowl, error)

	// Delete a knowl.
	//
	// # Returns
	//
	// - error: ErrMissing if there are no such knowl.
	Delete(ctx context.Context, id string) error

	// Render a knowl into html fragment.
	Render(ctx context.Context, id string, option RenderOption) (string, error)

	// Index lists knowls grouped by their first letters.
	Index(ctx context.Context, query IndexQuery) ([]IndexGroup, error)
}

type SaveRequest struct {
	Id      string
	Title   string
	Content string

	// quality of the knowl. When empty, the stored one (or beta, for new knowls) is kept.
	Quality domain.KnowlQuality

	// who saves the knowl.
	Author string

	// When not nil, the save succeeds only if the stored version equals to it.
	// 0 means "the knowl should be new".
	//
	// When nil, the save overwrites the knowl (last writer wins).
	IfVersion *int64
}

type RenderOption struct {
	// append footer with links to the knowl.
	Footer bool

	// When not nil, it is rendered instead of the stored content (preview).
	ContentOverride *string
}

type IndexQuery struct {
	// whitespace separated keywords. All of them should match.
	Search string

	// When not empty, only knowls in the category are listed.
	Category string

	// When not empty, only knowls of the qualities are listed.
	Quality []domain.KnowlQuality
}

type IndexGroup struct {
	// upper-cased first letter, or "#".
	Letter string
	Knowls []domain.Knowl
}

type impl struct {
	db       db.KnowlInterface
	renderer *render.Renderer
	clock    func() time.Time
	backoff  func() retry.Backoff
	base     string
}

type Option func(*impl) *impl

// WithClock replaces the clock stamping saved knowls.
func WithClock(clock func() time.Time) Option {
	return func(i *impl) *impl {
		i.clock = clock
		return i
	}
}

// WithRenderOptions configures the renderer.
func WithRenderOptions(options ...render.Option) Option {
	return func(i *impl) *impl {
		i.renderer = render.New(i.load, options...)
		return i
	}
}

// WithBaseURL sets the url which knowl pages are under. default = "/knowledge/"
func WithBaseURL(base string) Option {
	return func(i *impl) *impl {
		i.base = base
		return i
	}
}

func New(database db.KnowlInterface, options ...Option) Interface {
	i := &impl{
		db:    database,
		clock: time.Now,
		backoff: func() retry.Backoff {
			return retry.Limited(3, retry.StaticBackoff(10*time.Millisecond))
		},
		base: "/knowledge/",
	}
	i.renderer = render.New(i.load)
	for _, opt := range options {
		i = opt(i)
	}
	return i
}

func (i *impl) Database() db.KnowlInterface {
	return i.db
}

func (i *impl) load(ctx context.Context, id string) (domain.Knowl, bool, error) {
	return i.Get(ctx, id)
}

func (i *impl) Get(ctx context.Context, id string) (domain.Knowl, bool, error) {
	k, err := i.db.Get(ctx, id)
	if errors.Is(err, kerr.ErrMissing) {
		return domain.Placeholder(id), false, nil
	} else if err != nil {
		return domain.Knowl{}, false, err
	}
	return k, true, nil
}

func (i *impl) Save(ctx context.Context, req SaveRequest) (domain.Knowl, error) {
	if err := domain.ValidateKnowlId(req.Id); err != nil {
		return domain.Knowl{}, err
	}
	if req.Quality != "" {
		if _, err := domain.AsKnowlQuality(string(req.Quality)); err != nil {
			return domain.Knowl{}, err
		}
	}

	return retry.Blocking(ctx, i.backoff(), func() (domain.Knowl, error) {
		current, found, err := i.Get(ctx, req.Id)
		if err != nil {
			return domain.Knowl{}, err
		}
		stored := int64(0)
		if found {
			stored = current.Version
		}
		if req.IfVersion != nil && *req.IfVersion != stored {
			return domain.Knowl{}, kerr.VersionMismatch{
				Identity: fmt.Sprintf("knowl %s", req.Id), Expected: *req.IfVersion,
			}
		}

		next := domain.Knowl{
			Id:         req.Id,
			Title:      req.Title,
			Content:    req.Content,
			Quality:    req.Quality,
			Authors:    slices.Clone(current.Authors),
			LastAuthor: req.Author,
			Timestamp:  i.clock().UTC(),
			Keywords:   domain.Keywords(req.Id, req.Title, req.Content),
		}
		if next.Quality == "" {
			next.Quality = current.Quality
		}
		if next.Quality == "" {
			next.Quality = domain.QualityBeta
		}
		if req.Author != "" && !slices.Contains(next.Authors, req.Author) {
			next.Authors = append(next.Authors, req.Author)
		}

		// compare-and-swap on the version just read keeps authors of concurrent
		// saves. Only saves without IfVersion are retried.
		saved, err := i.db.Put(ctx, next, &stored)
		if errors.Is(err, kerr.ErrConflict) && req.IfVersion == nil {
			return domain.Knowl{}, fmt.Errorf("%w: %w", retry.ErrRetry, err)
		}
		if err != nil {
			return domain.Knowl{}, err
		}
		return saved, nil
	})
}

func (i *impl) Delete(ctx context.Context, id string) error {
	if err := domain.ValidateKnowlId(id); err != nil {
		return err
	}
	return i.db.Delete(ctx, id)
}

func (i *impl) Render(ctx context.Context, id string, option RenderOption) (string, error) {
	started := time.Now()
	defer func() {
		metrics.KnowlRenderDuration.Observe(time.Since(started).Seconds())
	}()

	var content string
	if option.ContentOverride != nil {
		content = *option.ContentOverride
	} else {
		k, _, err := i.Get(ctx, id)
		if err != nil {
			return "", xe.Wrap(err)
		}
		content = k.Content
	}

	out, err := i.renderer.Render(ctx, id, content)
	if err != nil {
		return "", xe.Wrap(err)
	}
	if option.Footer {
		out += i.footer(id)
	}
	return out, nil
}

func (i *impl) footer(id string) string {
	base := strings.TrimSuffix(i.base, "/")
	eid := html.EscapeString(id)
	return fmt.Sprintf(
		`<div class="knowl-footer"><a href="%s/show/%s">permalink</a> &middot; <a href="%s/edit/%s">edit</a></div>`,
		base, eid, base, eid,
	)
}

func (i *impl) Index(ctx context.Context, query IndexQuery) ([]IndexGroup, error) {
	knowls, err := i.db.Find(ctx, db.KnowlFilter{
		Keywords: domain.SearchTokens(query.Search),
		Category: query.Category,
		Quality:  query.Quality,
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}

	byLetter := map[string][]domain.Knowl{}
	for _, k := range knowls {
		l := domain.IndexLetter(k)
		byLetter[l] = append(byLetter[l], k)
	}

	groups := make([]IndexGroup, 0, len(byLetter))
	for l, ks := range byLetter {
		slices.SortFunc(ks, func(a, b domain.Knowl) int {
			if c := strings.Compare(strings.ToLower(titleOf(a)), strings.ToLower(titleOf(b))); c != 0 {
				return c
			}
			return strings.Compare(a.Id, b.Id)
		})
		groups = append(groups, IndexGroup{Letter: l, Knowls: ks})
	}
	slices.SortFunc(groups, func(a, b IndexGroup) int {
		// "#" goes last.
		if a.Letter == "#" || b.Letter == "#" {
			switch {
			case a.Letter == b.Letter:
				return 0
			case a.Letter == "#":
				return 1
			default:
				return -1
			}
		}
		return strings.Compare(a.Letter, b.Letter)
	})
	return groups, nil
}

func titleOf(k domain.Knowl) string {
	if t := strings.TrimSpace(k.Title); t != "" {
		return t
	}
	return k.Id
}
