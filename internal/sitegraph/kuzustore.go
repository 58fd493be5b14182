//go:build cgo

package sitegraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements Store on KuzuDB. It requires cgo because go-kuzu
// wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore on an in-memory database.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore persisted at dbPath. KuzuDB creates
// the leaf directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openFile(path string) (Store, error) {
	s, err := NewKuzuFileStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openKuzu(path string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// Node tables precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Site(
		slug STRING,
		project STRING,
		schema_type STRING,
		degraded BOOLEAN,
		partial BOOLEAN,
		PRIMARY KEY(slug)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Page(
		id STRING,
		site STRING,
		slug STRING,
		title STRING,
		position INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Section(
		id STRING,
		site STRING,
		page STRING,
		type STRING,
		variant STRING,
		position INT64,
		headline STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Image(
		id STRING,
		site STRING,
		placement STRING,
		url STRING,
		alt STRING,
		placeholder BOOLEAN,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_PAGE(FROM Site TO Page)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_SECTION(FROM Page TO Section)`,
	`CREATE REL TABLE IF NOT EXISTS SHOWS(FROM Section TO Image)`,
}

// InitSchema creates all tables that do not exist yet.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		if err := s.each(stmt, nil, nil); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Save deletes any previous index of the site and inserts idx.
func (s *KuzuStore) Save(_ context.Context, idx *Index) error {
	slug := idx.Site.Slug
	purge := []string{
		`MATCH (n:Section) WHERE n.site = $slug DETACH DELETE n`,
		`MATCH (n:Image) WHERE n.site = $slug DETACH DELETE n`,
		`MATCH (n:Page) WHERE n.site = $slug DETACH DELETE n`,
		`MATCH (n:Site) WHERE n.slug = $slug DETACH DELETE n`,
	}
	for _, cypher := range purge {
		if err := s.each(cypher, map[string]any{"slug": slug}, nil); err != nil {
			return err
		}
	}

	inserts := []struct {
		cypher string
		params map[string]any
	}{{
		`CREATE (:Site {slug: $slug, project: $project, schema_type: $schema, degraded: $degraded, partial: $partial})`,
		map[string]any{"slug": slug, "project": idx.Site.Project, "schema": idx.Site.SchemaType,
			"degraded": idx.Site.Degraded, "partial": idx.Site.Partial},
	}}
	for _, p := range idx.Pages {
		inserts = append(inserts, struct {
			cypher string
			params map[string]any
		}{
			`CREATE (:Page {id: $id, site: $site, slug: $slug, title: $title, position: $pos})`,
			map[string]any{"id": p.ID, "site": p.Site, "slug": p.Slug, "title": p.Title, "pos": int64(p.Position)},
		})
	}
	for _, x := range idx.Sections {
		inserts = append(inserts, struct {
			cypher string
			params map[string]any
		}{
			`CREATE (:Section {id: $id, site: $site, page: $page, type: $type, variant: $variant, position: $pos, headline: $headline})`,
			map[string]any{"id": x.ID, "site": x.Site, "page": x.Page, "type": x.Type,
				"variant": x.Variant, "pos": int64(x.Position), "headline": x.Headline},
		})
	}
	for _, img := range idx.Images {
		inserts = append(inserts, struct {
			cypher string
			params map[string]any
		}{
			`CREATE (:Image {id: $id, site: $site, placement: $placement, url: $url, alt: $alt, placeholder: $placeholder})`,
			map[string]any{"id": img.ID, "site": img.Site, "placement": img.Placement,
				"url": img.URL, "alt": img.Alt, "placeholder": img.Placeholder},
		})
	}
	for _, in := range inserts {
		if err := s.each(in.cypher, in.params, nil); err != nil {
			return err
		}
	}

	for _, e := range idx.Edges {
		link, ok := edgeLinks[e.Kind]
		if !ok {
			return fmt.Errorf("kuzu: unsupported edge kind: %s", e.Kind)
		}
		if err := s.each(link, map[string]any{"src": e.Source, "dst": e.Target}, nil); err != nil {
			return err
		}
	}
	return nil
}

var edgeLinks = map[string]string{
	EdgeHasPage:    `MATCH (a:Site {slug: $src}), (b:Page {id: $dst}) CREATE (a)-[:HAS_PAGE]->(b)`,
	EdgeHasSection: `MATCH (a:Page {id: $src}), (b:Section {id: $dst}) CREATE (a)-[:HAS_SECTION]->(b)`,
	EdgeShows:      `MATCH (a:Section {id: $src}), (b:Image {id: $dst}) CREATE (a)-[:SHOWS]->(b)`,
}

// Sites returns every indexed site ordered by slug.
func (s *KuzuStore) Sites(_ context.Context) ([]SiteNode, error) {
	sites := []SiteNode{}
	err := s.each(`MATCH (s:Site) RETURN s.slug, s.project, s.schema_type, s.degraded, s.partial ORDER BY s.slug`, nil,
		func(r row) {
			sites = append(sites, SiteNode{
				Slug: r.str(0), Project: r.str(1), SchemaType: r.str(2), Degraded: r.flag(3), Partial: r.flag(4),
			})
		})
	return sites, err
}

// requireSite returns ErrNotFound when slug has not been indexed.
func (s *KuzuStore) requireSite(slug string) error {
	found := false
	err := s.each(`MATCH (s:Site {slug: $slug}) RETURN s.slug`, map[string]any{"slug": slug}, func(row) { found = true })
	if err == nil && !found {
		err = ErrNotFound
	}
	return err
}

// Sections walks HAS_PAGE and HAS_SECTION from the site.
func (s *KuzuStore) Sections(_ context.Context, slug string) ([]SectionNode, error) {
	if err := s.requireSite(slug); err != nil {
		return nil, err
	}
	sections := []SectionNode{}
	err := s.each(
		`MATCH (:Site {slug: $slug})-[:HAS_PAGE]->(p:Page)-[:HAS_SECTION]->(x:Section)
		 RETURN x.id, x.site, x.page, x.type, x.variant, x.position, x.headline
		 ORDER BY p.position, x.position`,
		map[string]any{"slug": slug},
		func(r row) {
			sections = append(sections, SectionNode{
				ID: r.str(0), Site: r.str(1), Page: r.str(2), Type: r.str(3),
				Variant: r.str(4), Position: r.num(5), Headline: r.str(6),
			})
		})
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// Images returns site images; with a section type it follows SHOWS edges.
func (s *KuzuStore) Images(_ context.Context, slug, section string) ([]ImageNode, error) {
	if err := s.requireSite(slug); err != nil {
		return nil, err
	}
	cypher := `MATCH (i:Image) WHERE i.site = $slug
		RETURN i.id, i.site, i.placement, i.url, i.alt, i.placeholder ORDER BY i.id`
	params := map[string]any{"slug": slug}
	if section != "" {
		cypher = `MATCH (x:Section)-[:SHOWS]->(i:Image) WHERE x.site = $slug AND x.type = $section
			RETURN DISTINCT i.id, i.site, i.placement, i.url, i.alt, i.placeholder ORDER BY i.id`
		params["section"] = section
	}
	images := []ImageNode{}
	err := s.each(cypher, params, func(r row) {
		images = append(images, ImageNode{
			ID: r.str(0), Site: r.str(1), Placement: r.str(2), URL: r.str(3), Alt: r.str(4), Placeholder: r.flag(5),
		})
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// Stats counts nodes and edges.
func (s *KuzuStore) Stats(_ context.Context) (*Stats, error) {
	st := &Stats{}
	counts := map[string]*int{
		"MATCH (n:Site) RETURN count(n)":    &st.Sites,
		"MATCH (n:Page) RETURN count(n)":    &st.Pages,
		"MATCH (n:Section) RETURN count(n)": &st.Sections,
		"MATCH (n:Image) RETURN count(n)":   &st.Images,
		"MATCH ()-[r]->() RETURN count(r)":  &st.Edges,
	}
	for cypher, dst := range counts {
		if err := s.each(cypher, nil, func(r row) { *dst = r.num(0) }); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// each runs cypher, handing every result row to fn. Statements with
// params are prepared first. A nil fn discards rows.
func (s *KuzuStore) each(cypher string, params map[string]any, fn func(row)) error {
	var (
		res *kuzu.QueryResult
		err error
	)
	if params == nil {
		res, err = s.conn.Query(cypher)
	} else {
		stmt, perr := s.conn.Prepare(cypher)
		if perr != nil {
			return fmt.Errorf("kuzu: prepare: %w", perr)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return fmt.Errorf("kuzu: run: %w", err)
	}
	defer res.Close()

	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return fmt.Errorf("kuzu: next row: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return fmt.Errorf("kuzu: row values: %w", err)
		}
		if fn != nil {
			fn(row(vals))
		}
	}
	return nil
}

// row is one result tuple in RETURN order.
type row []any

func (r row) str(i int) string {
	switch v := r[i].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (r row) num(i int) int {
	switch v := r[i].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (r row) flag(i int) bool {
	b, _ := r[i].(bool)
	return b
}
