package catalog

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldSelector locates one value inside a listing card.
// An empty CSS selects the card element itself; an empty Attr reads the element text.
type FieldSelector struct {
	CSS          string `yaml:"css" koanf:"css"`
	Attr         string `yaml:"attr" koanf:"attr"`
	FallbackText bool   `yaml:"fallback_text" koanf:"fallback_text"` // use text when Attr is missing or empty
}

// Selectors describe how listing cards are found and read on a catalog page.
type Selectors struct {
	Item       string        `yaml:"item" koanf:"item"`
	Identifier FieldSelector `yaml:"identifier" koanf:"identifier"`
	Link       FieldSelector `yaml:"link" koanf:"link"`
	Title      FieldSelector `yaml:"title" koanf:"title"`
	Image      FieldSelector `yaml:"image" koanf:"image"`
	Price      FieldSelector `yaml:"price" koanf:"price"`
	NextPage   string        `yaml:"next_page" koanf:"next_page"` // empty: source is not paginated
}

// DefaultSelectors matches the product grid markup the tracker was first written against.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:       "li.productItem",
		Identifier: FieldSelector{CSS: ".productItemBlock", Attr: "data-sku"},
		Link:       FieldSelector{CSS: "a.productName-link", Attr: "href"},
		Title:      FieldSelector{CSS: "a.productName-link", Attr: "title", FallbackText: true},
		Image:      FieldSelector{CSS: "img.productImg", Attr: "src"},
		Price:      FieldSelector{CSS: ".now-price"},
	}
}

// withDefaults fills every unset selector from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Item == "" {
		s.Item = d.Item
	}
	if s.Identifier == (FieldSelector{}) {
		s.Identifier = d.Identifier
	}
	if s.Link == (FieldSelector{}) {
		s.Link = d.Link
	}
	if s.Title == (FieldSelector{}) {
		s.Title = d.Title
	}
	if s.Image == (FieldSelector{}) {
		s.Image = d.Image
	}
	if s.Price == (FieldSelector{}) {
		s.Price = d.Price
	}
	return s
}

// Source is one catalog to traverse on every run.
// Sources are loaded at startup and fingerprinted so config drift shows up in logs.
type Source struct {
	Name        string    `yaml:"name" koanf:"name"`
	URL         string    `yaml:"url" koanf:"url"`
	Origin      string    `yaml:"origin" koanf:"origin"` // base for relative links; defaults to scheme://host of URL
	Selectors   Selectors `yaml:"selectors" koanf:"selectors"`
	Fingerprint string    `yaml:"-" koanf:"-"`
}

// Normalize validates the source and fills defaults.
func (s Source) Normalize() (Source, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return s, fmt.Errorf("source name must not be empty")
	}
	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return s, fmt.Errorf("source %q: url must be an absolute http(s) URL, got %q", s.Name, s.URL)
	}
	s.URL = u.String()
	if s.Origin == "" {
		s.Origin = (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
	} else if o, err := url.Parse(s.Origin); err != nil || o.Host == "" {
		return s, fmt.Errorf("source %q: invalid origin %q", s.Name, s.Origin)
	}
	s.Selectors = s.Selectors.withDefaults()
	return s, nil
}

// SourceRepository defines the interface for loading catalog sources.
type SourceRepository interface {
	// Get returns the source with the given name, or an error if not found.
	Get(ctx context.Context, name string) (*Source, error)

	// Sources returns all sources in traversal order.
	Sources() []Source
}

// FileSystemSourceRepository loads catalog sources from *.yaml files in a directory.
// Each file contains exactly one source at the top level. Files are read in
// lexical order, which is also the traversal order. No hot reload.
type FileSystemSourceRepository struct {
	dir     string
	ordered []Source
	byName  map[string]int
}

// NewFileSystemSourceRepository creates a new repository and eagerly loads all
// sources from dir. Returns an error if any source file is malformed or invalid.
func NewFileSystemSourceRepository(dir string) (*FileSystemSourceRepository, error) {
	repo := &FileSystemSourceRepository{
		dir:    dir,
		byName: make(map[string]int),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewStaticSourceRepository builds a repository from already-decoded sources
// (the inline `sources:` list of the main config) followed by extra.
func NewStaticSourceRepository(inline []Source, extra ...Source) (*FileSystemSourceRepository, error) {
	repo := &FileSystemSourceRepository{byName: make(map[string]int)}
	for _, src := range append(append([]Source{}, inline...), extra...) {
		if src.Fingerprint == "" {
			data, err := yaml.Marshal(src)
			if err != nil {
				return nil, fmt.Errorf("fingerprint source %q: %w", src.Name, err)
			}
			src.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))
		}
		if err := repo.add(src); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func (r *FileSystemSourceRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // inline sources only
	}
	if err != nil {
		return fmt.Errorf("catalog dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalog path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading catalog dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading source file %s: %w", path, err)
		}

		var src Source
		if err := yaml.Unmarshal(data, &src); err != nil {
			return fmt.Errorf("parsing source file %s: %w", path, err)
		}
		if src.Name == "" && src.URL == "" {
			continue // skip empty / comment-only files
		}
		src.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))

		if err := r.add(src); err != nil {
			return fmt.Errorf("source file %s: %w", path, err)
		}
	}
	return nil
}

func (r *FileSystemSourceRepository) add(src Source) error {
	normalized, err := src.Normalize()
	if err != nil {
		return err
	}
	if _, exists := r.byName[normalized.Name]; exists {
		return fmt.Errorf("source %q: duplicate source name", normalized.Name)
	}
	r.byName[normalized.Name] = len(r.ordered)
	r.ordered = append(r.ordered, normalized)
	return nil
}

// Merge appends the sources of other after the ones already loaded.
func (r *FileSystemSourceRepository) Merge(other *FileSystemSourceRepository) error {
	for _, src := range other.ordered {
		if err := r.add(src); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the source with the given name, or an error if not found.
func (r *FileSystemSourceRepository) Get(_ context.Context, name string) (*Source, error) {
	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("catalog source %q not found", name)
	}
	src := r.ordered[idx]
	return &src, nil
}

// Sources returns all sources in traversal order.
func (r *FileSystemSourceRepository) Sources() []Source {
	out := make([]Source, len(r.ordered))
	copy(out, r.ordered)
	return out
}
