package knowls

import (
	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/domain/knowl"
	"github.com/lmfdb/lmfdb/pkg/utils"
	"github.com/lmfdb/lmfdb/pkg/utils/rfctime"
)

type Summary struct {
	Id      string `json:"id"`
	Title   string `json:"title"`
	Quality string `json:"quality"`
}

func ComposeSummary(k domain.Knowl) Summary {
	return Summary{Id: k.Id, Title: k.Title, Quality: k.Quality.String()}
}

type Detail struct {
	Id         string           `json:"id"`
	Title      string           `json:"title"`
	Content    string           `json:"content"`
	Quality    string           `json:"quality"`
	Authors    []string         `json:"authors"`
	LastAuthor string           `json:"last_author,omitempty"`
	Timestamp  *rfctime.RFC3339 `json:"timestamp,omitempty"`
	Version    int64            `json:"version"`

	// false for placeholders of missing knowls.
	Exists bool `json:"exists"`
}

func ComposeDetail(k domain.Knowl, exists bool) Detail {
	d := Detail{
		Id:         k.Id,
		Title:      k.Title,
		Content:    k.Content,
		Quality:    k.Quality.String(),
		Authors:    append([]string{}, k.Authors...),
		LastAuthor: k.LastAuthor,
		Version:    k.Version,
		Exists:     exists,
	}
	if !k.Timestamp.IsZero() {
		ts := rfctime.RFC3339(k.Timestamp)
		d.Timestamp = &ts
	}
	return d
}

// SaveRequest is the body of PUT /api/knowls/:id/.
type SaveRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Quality string `json:"quality,omitempty"`

	// version the editor has read. 0 means the knowl should be new.
	// When it is omitted, If-Match header is used, if any.
	Version *int64 `json:"version,omitempty"`
}

type IndexGroup struct {
	Letter string    `json:"letter"`
	Knowls []Summary `json:"knowls"`
}

func ComposeIndex(groups []knowl.IndexGroup) []IndexGroup {
	return utils.Map(groups, func(g knowl.IndexGroup) IndexGroup {
		return IndexGroup{Letter: g.Letter, Knowls: utils.Map(g.Knowls, ComposeSummary)}
	})
}
