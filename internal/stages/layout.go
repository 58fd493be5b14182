package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// LayoutInput is the input of the layout generator.
type LayoutInput struct {
	Config   site.BusinessConfiguration
	Sections site.SectionPlan
}

// LayoutGenerator arranges planned sections into pages.
type LayoutGenerator struct{ base }

var _ Executor[LayoutInput, site.Layout] = (*LayoutGenerator)(nil)

// NewLayoutGenerator creates the stage.
func NewLayoutGenerator(env Env, chain provider.Chain) *LayoutGenerator {
	return &LayoutGenerator{newBase(site.StageLayout, env, chain)}
}

// Sections that get a page of their own when planned.
var dedicatedPages = []string{site.SectionAbout, site.SectionServices, site.SectionContact}

const layoutSystem = `You are a web layout designer.
Answer with a JSON object: {"pages": [{"slug": "home", "title": "Home", "sections":
[{"type": "hero", "variant": "split-image", "columns": 1}]}]}.
The first page must be "home". Use only the section types you are given and place every one of them.
Columns range from 1 to 4.`

// BuildLayoutRequest builds the provider request.
func BuildLayoutRequest(cfg site.BusinessConfiguration, plan site.SectionPlan) (system, prompt string) {
	types := make([]string, 0, len(plan.Sections))
	for _, s := range plan.Sections {
		types = append(types, s.Type)
	}
	return layoutSystem, fmt.Sprintf("Lay out these sections, in order: %s.\n\n%s",
		strings.Join(types, ", "), describe(cfg))
}

// Execute runs the stage.
func (s *LayoutGenerator) Execute(ctx context.Context, in LayoutInput, r Reporter) (res site.Result[site.Layout]) {
	fallback := func() site.Layout { return FallbackLayout(in.Config, in.Sections) }
	defer recoverTo(&s.base, &res, fallback)

	req := s.textRequest(BuildLayoutRequest(in.Config, in.Sections))
	r.Report(ProgressRequestBuilt, "request built")

	ai, ok, err := generate(ctx, &s.base, req, r, func(raw []byte) (site.Layout, error) {
		return parseLayout(raw, in.Sections)
	})
	if err != nil {
		return cancelled[site.Layout](&s.base, err)
	}
	if ok {
		return succeed(&s.base, r, ai.value, ai.path, ai.provider)
	}
	return succeed(&s.base, r, fallback(), PathFallback, "")
}

func parseLayout(raw []byte, plan site.SectionPlan) (site.Layout, error) {
	if err := validateSchema("layout", raw); err != nil {
		return site.Layout{}, err
	}
	var out site.Layout
	if err := json.Unmarshal(raw, &out); err != nil {
		return site.Layout{}, err
	}
	if out.Pages[0].Slug != "home" {
		return site.Layout{}, fmt.Errorf("first page is %q, want home", out.Pages[0].Slug)
	}

	placed := make(map[string]bool)
	for pi := range out.Pages {
		for si := range out.Pages[pi].Sections {
			sec := &out.Pages[pi].Sections[si]
			if !plan.Has(sec.Type) {
				return site.Layout{}, fmt.Errorf("page %s places unplanned section %q", out.Pages[pi].Slug, sec.Type)
			}
			sec.Order = si + 1
			placed[sec.Type] = true
		}
	}
	for _, s := range plan.Sections {
		if !placed[s.Type] {
			return site.Layout{}, fmt.Errorf("section %q is not placed on any page", s.Type)
		}
	}
	return out, nil
}

type variant struct {
	name    string
	columns int
}

var sectionVariants = map[string]variant{
	site.SectionHero:         {"split-image", 1},
	site.SectionAbout:        {"image-text", 2},
	site.SectionServices:     {"card-grid", 3},
	site.SectionTestimonials: {"carousel", 1},
	site.SectionFAQ:          {"accordion", 1},
	site.SectionContact:      {"form-details", 2},
	site.SectionTeam:         {"profile-grid", 3},
	site.SectionGallery:      {"masonry", 3},
	site.SectionMenu:         {"menu-list", 2},
	site.SectionPricing:      {"pricing-cards", 3},
	site.SectionProcess:      {"steps", 4},
	site.SectionCTA:          {"banner", 1},
}

func layoutSection(sectionType string, cfg site.BusinessConfiguration, order int) site.LayoutSection {
	v, ok := sectionVariants[sectionType]
	if !ok {
		v = variant{"stacked", 1}
	}
	if sectionType == site.SectionServices && len(cfg.Services) > 0 {
		v.columns = min(len(cfg.Services), 3)
	}
	return site.LayoutSection{Type: sectionType, Variant: v.name, Columns: v.columns, Order: order}
}

// FallbackLayout puts every planned section on the home page in plan order
// and adds dedicated about, services and contact pages when planned.
func FallbackLayout(cfg site.BusinessConfiguration, plan site.SectionPlan) site.Layout {
	specs := slices.Clone(plan.Sections)
	slices.SortStableFunc(specs, func(a, b site.SectionSpec) int { return a.Order - b.Order })

	home := site.Page{Slug: "home", Title: "Home"}
	for i, s := range specs {
		home.Sections = append(home.Sections, layoutSection(s.Type, cfg, i+1))
	}
	layout := site.Layout{Pages: []site.Page{home}}

	for _, t := range dedicatedPages {
		if !plan.Has(t) {
			continue
		}
		page := site.Page{Slug: t, Title: titleCase(t)}
		sec := layoutSection(t, cfg, 1)
		sec.Variant = "detailed"
		page.Sections = append(page.Sections, sec)
		if t != site.SectionContact {
			page.Sections = append(page.Sections, layoutSection(site.SectionCTA, cfg, 2))
		}
		layout.Pages = append(layout.Pages, page)
	}
	return layout
}
