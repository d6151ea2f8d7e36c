package knowl

import (
	"fmt"
	"io"
	"os"

	"github.com/lmfdb/lmfdb/pkg/domain"
	"github.com/lmfdb/lmfdb/pkg/utils/rfctime"
	"gopkg.in/yaml.v3"
)

// Document is a knowl in YAML files.
type Document struct {
	Id         string           `yaml:"id"`
	Title      string           `yaml:"title"`
	Content    string           `yaml:"content"`
	Quality    string           `yaml:"quality"`
	Authors    []string         `yaml:"authors,omitempty"`
	LastAuthor string           `yaml:"last_author,omitempty"`
	Timestamp  *rfctime.RFC3339 `yaml:"timestamp,omitempty"`
}

func ComposeDocument(k domain.Knowl) Document {
	d := Document{
		Id:         k.Id,
		Title:      k.Title,
		Content:    k.Content,
		Quality:    k.Quality.String(),
		Authors:    k.Authors,
		LastAuthor: k.LastAuthor,
	}
	if !k.Timestamp.IsZero() {
		t := rfctime.RFC3339(k.Timestamp.UTC())
		d.Timestamp = &t
	}
	return d
}

// Knowl converts d into a knowl to be stored.
func (d Document) Knowl() (domain.Knowl, error) {
	if err := domain.ValidateKnowlId(d.Id); err != nil {
		return domain.Knowl{}, err
	}
	quality, err := domain.AsKnowlQuality(d.Quality)
	if err != nil {
		return domain.Knowl{}, fmt.Errorf("knowl %s: %w", d.Id, err)
	}
	k := domain.Knowl{
		Id:         d.Id,
		Title:      d.Title,
		Content:    d.Content,
		Quality:    quality,
		Authors:    d.Authors,
		LastAuthor: d.LastAuthor,
		Keywords:   domain.Keywords(d.Id, d.Title, d.Content),
	}
	if d.Timestamp != nil {
		k.Timestamp = d.Timestamp.Time()
	}
	return k, nil
}

func encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// create opens file to write. "-" is stdout.
func create(file string, stdout io.Writer) (io.WriteCloser, error) {
	if file == "-" {
		return nopCloser{stdout}, nil
	}
	return os.Create(file)
}

// open opens file to read. "-" is stdin.
func open(file string, stdin io.Reader) (io.ReadCloser, error) {
	if file == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(file)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
