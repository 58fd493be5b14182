package sitegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/site"
)

func artifact() *site.SiteArtifact {
	hero := site.ImageSpec{ID: "hero-1", Placement: "hero", Alt: "Acme Law office"}
	svc := site.ImageSpec{ID: "services-1", Placement: "services", Alt: "Contract law"}
	return &site.SiteArtifact{
		Slug:        "acme-law",
		ProjectName: "Acme Law",
		Degraded:    true,
		Layout: &site.Layout{Pages: []site.Page{
			{Slug: "home", Title: "Home", Sections: []site.LayoutSection{
				{Type: "hero", Variant: "split-image", Columns: 1},
				{Type: "services", Variant: "grid", Columns: 3},
			}},
			{Slug: "services", Title: "Services", Sections: []site.LayoutSection{
				{Type: "services", Variant: "list", Columns: 1},
			}},
		}},
		Copy: []site.SectionCopy{{Section: "hero", Headline: "Contract Law You Can Count On"}},
		Images: []site.Result[site.GeneratedImage]{
			site.Success(site.GeneratedImage{Spec: hero, URL: "https://img.example/hero.png"}, false),
			site.Success(site.GeneratedImage{Spec: svc, URL: "https://placehold.co/600x400"}, true),
			site.Failure[site.GeneratedImage](site.KindCancelled, nil),
		},
		SEO: &site.SEOMetadata{StructuredData: map[string]any{"@type": "LegalService"}},
	}
}

func TestBuild(t *testing.T) {
	idx, err := Build(artifact())
	require.NoError(t, err)

	assert.Equal(t, "LegalService", idx.Site.SchemaType)
	assert.Len(t, idx.Pages, 2)
	require.Len(t, idx.Sections, 3)
	assert.Equal(t, "acme-law/home/0-hero", idx.Sections[0].ID)
	assert.Equal(t, "Contract Law You Can Count On", idx.Sections[0].Headline)
	assert.Len(t, idx.Images, 2, "failed images are not indexed")
	assert.True(t, idx.Images[1].Placeholder)

	shows := 0
	for _, e := range idx.Edges {
		if e.Kind == EdgeShows {
			shows++
		}
	}
	assert.Equal(t, 3, shows, "hero image once, services image on both services sections")
	assert.Len(t, idx.Edges, 2+3+3)
}

func TestBuild_RequiresSlug(t *testing.T) {
	_, err := Build(&site.SiteArtifact{})
	assert.Error(t, err)
	_, err = Build(nil)
	assert.Error(t, err)
}

// testStore runs the Store contract against s.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.InitSchema(ctx))

	require.NoError(t, SaveArtifact(ctx, s, artifact()))

	sites, err := s.Sites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, SiteNode{Slug: "acme-law", Project: "Acme Law", SchemaType: "LegalService", Degraded: true}, sites[0])

	sections, err := s.Sections(ctx, "acme-law")
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, []string{"hero", "services", "services"},
		[]string{sections[0].Type, sections[1].Type, sections[2].Type})
	assert.Equal(t, "services", sections[2].Page)

	images, err := s.Images(ctx, "acme-law", "")
	require.NoError(t, err)
	assert.Len(t, images, 2)

	images, err = s.Images(ctx, "acme-law", "services")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "acme-law/services-1", images[0].ID)

	images, err = s.Images(ctx, "acme-law", "faq")
	require.NoError(t, err)
	assert.Empty(t, images)

	_, err = s.Sections(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Images(ctx, "unknown", "")
	assert.ErrorIs(t, err, ErrNotFound)

	// Saving again replaces the previous index.
	a := artifact()
	a.Layout.Pages = a.Layout.Pages[:1]
	require.NoError(t, SaveArtifact(ctx, s, a))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Sites: 1, Pages: 1, Sections: 2, Images: 2, Edges: 1 + 2 + 2}, *st)
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &MemStore{}, s)
}
