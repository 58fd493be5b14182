// Package sitegraph indexes generated sites as a graph:
//
//	Site -HAS_PAGE-> Page -HAS_SECTION-> Section -SHOWS-> Image
//
// The index answers which sections and images a site has without loading
// the full artifact.
package sitegraph

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned for an unknown site slug.
	ErrNotFound = errors.New("site not indexed")

	// ErrKuzuUnavailable is returned when the binary was built without cgo.
	ErrKuzuUnavailable = errors.New("sitegraph: KuzuDB requires a cgo build")
)

// Store is the graph backend. Implementations: KuzuStore (cgo builds),
// MemStore.
type Store interface {
	io.Closer

	// InitSchema creates tables. It is idempotent.
	InitSchema(ctx context.Context) error

	// Save replaces the index of one site.
	Save(ctx context.Context, idx *Index) error

	Sites(ctx context.Context) ([]SiteNode, error)
	Sections(ctx context.Context, slug string) ([]SectionNode, error)

	// Images returns the images of a site. A non-empty section restricts
	// the result to images shown by sections of that type.
	Images(ctx context.Context, slug, section string) ([]ImageNode, error)

	Stats(ctx context.Context) (*Stats, error)
}

// SiteNode is the root of one indexed site.
type SiteNode struct {
	Slug       string `json:"slug"`
	Project    string `json:"project"`
	SchemaType string `json:"schemaType,omitempty"`
	Degraded   bool   `json:"degraded"`
	Partial    bool   `json:"partial"`
}

// PageNode is one page of a site.
type PageNode struct {
	ID       string `json:"id"`
	Site     string `json:"site"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// SectionNode is one section placed on a page.
type SectionNode struct {
	ID       string `json:"id"`
	Site     string `json:"site"`
	Page     string `json:"page"`
	Type     string `json:"type"`
	Variant  string `json:"variant"`
	Position int    `json:"position"`
	Headline string `json:"headline,omitempty"`
}

// ImageNode is one generated or placeholder image.
type ImageNode struct {
	ID          string `json:"id"`
	Site        string `json:"site"`
	Placement   string `json:"placement"`
	URL         string `json:"url"`
	Alt         string `json:"alt"`
	Placeholder bool   `json:"placeholder"`
}

// Edge kinds.
const (
	EdgeHasPage    = "HAS_PAGE"
	EdgeHasSection = "HAS_SECTION"
	EdgeShows      = "SHOWS"
)

// Edge connects two node IDs.
type Edge struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Stats summarizes the whole index.
type Stats struct {
	Sites    int `json:"sites"`
	Pages    int `json:"pages"`
	Sections int `json:"sections"`
	Images   int `json:"images"`
	Edges    int `json:"edges"`
}
