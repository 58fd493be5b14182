package sitegraph

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore implements Store with maps. Safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	sites map[string]*Index
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sites: make(map[string]*Index)}
}

// InitSchema is a no-op.
func (m *MemStore) InitSchema(context.Context) error { return nil }

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

// Save replaces the index of idx.Site.Slug.
func (m *MemStore) Save(_ context.Context, idx *Index) error {
	cp := &Index{
		Site:     idx.Site,
		Pages:    slices.Clone(idx.Pages),
		Sections: slices.Clone(idx.Sections),
		Images:   slices.Clone(idx.Images),
		Edges:    slices.Clone(idx.Edges),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[idx.Site.Slug] = cp
	return nil
}

// Sites returns every indexed site ordered by slug.
func (m *MemStore) Sites(context.Context) ([]SiteNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SiteNode, 0, len(m.sites))
	for _, idx := range m.sites {
		out = append(out, idx.Site)
	}
	slices.SortFunc(out, func(a, b SiteNode) int { return cmp.Compare(a.Slug, b.Slug) })
	return out, nil
}

// Sections returns the sections of a site in page then position order.
func (m *MemStore) Sections(_ context.Context, slug string) ([]SectionNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.sites[slug]
	if !ok {
		return nil, ErrNotFound
	}
	pagePos := make(map[string]int, len(idx.Pages))
	for _, p := range idx.Pages {
		pagePos[p.Slug] = p.Position
	}
	out := slices.Clone(idx.Sections)
	slices.SortStableFunc(out, func(a, b SectionNode) int {
		if c := cmp.Compare(pagePos[a.Page], pagePos[b.Page]); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return out, nil
}

// Images returns the images of a site ordered by ID, optionally only those
// shown by sections of the given type.
func (m *MemStore) Images(_ context.Context, slug, section string) ([]ImageNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.sites[slug]
	if !ok {
		return nil, ErrNotFound
	}

	var shown map[string]bool
	if section != "" {
		sectionIDs := make(map[string]bool)
		for _, s := range idx.Sections {
			if s.Type == section {
				sectionIDs[s.ID] = true
			}
		}
		shown = make(map[string]bool)
		for _, e := range idx.Edges {
			if e.Kind == EdgeShows && sectionIDs[e.Source] {
				shown[e.Target] = true
			}
		}
	}

	var out []ImageNode
	for _, img := range idx.Images {
		if shown == nil || shown[img.ID] {
			out = append(out, img)
		}
	}
	slices.SortFunc(out, func(a, b ImageNode) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Stats counts nodes and edges across all sites.
func (m *MemStore) Stats(context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &Stats{Sites: len(m.sites)}
	for _, idx := range m.sites {
		st.Pages += len(idx.Pages)
		st.Sections += len(idx.Sections)
		st.Images += len(idx.Images)
		st.Edges += len(idx.Edges)
	}
	return st, nil
}
