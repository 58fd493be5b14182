package sitegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/sitegen/internal/site"
)

// Index is the graph form of one artifact.
type Index struct {
	Site     SiteNode
	Pages    []PageNode
	Sections []SectionNode
	Images   []ImageNode
	Edges    []Edge
}

// Build converts an artifact into its graph form. Images link to every
// section whose type matches their placement.
func Build(a *site.SiteArtifact) (*Index, error) {
	if a == nil || a.Slug == "" {
		return nil, errors.New("sitegraph: artifact has no slug")
	}
	idx := &Index{Site: SiteNode{
		Slug:     a.Slug,
		Project:  a.ProjectName,
		Degraded: a.Degraded,
		Partial:  a.Partial,
	}}
	if a.SEO != nil {
		idx.Site.SchemaType = a.SEO.SchemaType()
	}

	headlines := make(map[string]string, len(a.Copy))
	for _, c := range a.Copy {
		headlines[c.Section] = c.Headline
	}

	sectionsByType := make(map[string][]string)
	if a.Layout != nil {
		for pi, p := range a.Layout.Pages {
			page := PageNode{
				ID:       a.Slug + "/" + p.Slug,
				Site:     a.Slug,
				Slug:     p.Slug,
				Title:    p.Title,
				Position: pi,
			}
			idx.Pages = append(idx.Pages, page)
			idx.Edges = append(idx.Edges, Edge{Kind: EdgeHasPage, Source: a.Slug, Target: page.ID})

			for si, s := range p.Sections {
				sec := SectionNode{
					ID:       fmt.Sprintf("%s/%d-%s", page.ID, si, s.Type),
					Site:     a.Slug,
					Page:     p.Slug,
					Type:     s.Type,
					Variant:  s.Variant,
					Position: si,
					Headline: headlines[s.Type],
				}
				idx.Sections = append(idx.Sections, sec)
				idx.Edges = append(idx.Edges, Edge{Kind: EdgeHasSection, Source: page.ID, Target: sec.ID})
				sectionsByType[s.Type] = append(sectionsByType[s.Type], sec.ID)
			}
		}
	}

	for _, r := range a.Images {
		if !r.OK() {
			continue
		}
		img := ImageNode{
			ID:          a.Slug + "/" + r.Value.Spec.ID,
			Site:        a.Slug,
			Placement:   r.Value.Spec.Placement,
			URL:         r.Value.URL,
			Alt:         r.Value.Spec.Alt,
			Placeholder: r.UsedFallback,
		}
		idx.Images = append(idx.Images, img)
		for _, secID := range sectionsByType[img.Placement] {
			idx.Edges = append(idx.Edges, Edge{Kind: EdgeShows, Source: secID, Target: img.ID})
		}
	}
	return idx, nil
}

// SaveArtifact builds the index of a and stores it.
func SaveArtifact(ctx context.Context, s Store, a *site.SiteArtifact) error {
	idx, err := Build(a)
	if err != nil {
		return err
	}
	return s.Save(ctx, idx)
}

// Open returns a KuzuStore persisted at path with its schema initialized,
// or a MemStore when path is empty. Without cgo a non-empty path fails with
// ErrKuzuUnavailable.
func Open(ctx context.Context, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	if path == "" {
		s = NewMemStore()
	} else if s, err = openFile(path); err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
