package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// SectionsInput is the input of the section planner.
type SectionsInput struct {
	Config site.BusinessConfiguration
}

// SectionPlanner decides which sections the site has and in what order.
type SectionPlanner struct{ base }

var _ Executor[SectionsInput, site.SectionPlan] = (*SectionPlanner)(nil)

// NewSectionPlanner creates the stage.
func NewSectionPlanner(env Env, chain provider.Chain) *SectionPlanner {
	return &SectionPlanner{newBase(site.StageSectionPlanner, env, chain)}
}

const sectionsSystem = `You are an information architect planning a small-business website.
Answer with a JSON object: {"sections": [{"type": "hero", "importance": "primary|secondary|supporting",
"purpose": "why this section exists"}]}. List sections in the order they should appear.
Always include a hero section.`

// BuildSectionsRequest builds the provider request for cfg.
func BuildSectionsRequest(cfg site.BusinessConfiguration) (system, prompt string) {
	return sectionsSystem, "Plan the home page sections for this business.\n\n" + describe(cfg)
}

// Execute runs the stage.
func (s *SectionPlanner) Execute(ctx context.Context, in SectionsInput, r Reporter) (res site.Result[site.SectionPlan]) {
	defer recoverTo(&s.base, &res, func() site.SectionPlan { return FallbackSections(in.Config) })

	req := s.textRequest(BuildSectionsRequest(in.Config))
	r.Report(ProgressRequestBuilt, "request built")

	ai, ok, err := generate(ctx, &s.base, req, r, parseSections)
	if err != nil {
		return cancelled[site.SectionPlan](&s.base, err)
	}
	if ok {
		return succeed(&s.base, r, ai.value, ai.path, ai.provider)
	}
	return succeed(&s.base, r, FallbackSections(in.Config), PathFallback, "")
}

type sectionsResponse struct {
	Sections []site.SectionSpec `json:"sections"`
}

func parseSections(raw []byte) (site.SectionPlan, error) {
	if err := validateSchema("sections", raw); err != nil {
		return site.SectionPlan{}, err
	}
	var resp sectionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return site.SectionPlan{}, err
	}
	plan, err := orderSections(resp.Sections)
	if err != nil {
		return site.SectionPlan{}, err
	}
	return plan, nil
}

// orderSections drops duplicate types, then stable-sorts by importance tier
// so sections of equal importance keep the order the provider suggested.
func orderSections(specs []site.SectionSpec) (site.SectionPlan, error) {
	seen := make(map[string]bool, len(specs))
	out := make([]site.SectionSpec, 0, len(specs))
	for _, sp := range specs {
		sp.Type = strings.ToLower(strings.TrimSpace(sp.Type))
		if seen[sp.Type] {
			continue
		}
		seen[sp.Type] = true
		out = append(out, sp)
	}
	if !seen[site.SectionHero] {
		return site.SectionPlan{}, errors.New("plan has no hero section")
	}

	slices.SortStableFunc(out, func(a, b site.SectionSpec) int {
		return a.Importance.Rank() - b.Importance.Rank()
	})
	for i := range out {
		out[i].Order = i + 1
	}
	return site.SectionPlan{Sections: out}, nil
}

// FallbackSections places hero first and contact last, with the industry
// profile's sections in between.
func FallbackSections(cfg site.BusinessConfiguration) site.SectionPlan {
	p := profileFor(cfg.Industry)

	specs := []site.SectionSpec{{
		Type:       site.SectionHero,
		Importance: site.ImportancePrimary,
		Purpose:    "Introduce " + cfg.ProjectName + " and its main offer",
	}}
	for i, t := range p.sections {
		imp := site.ImportanceSupporting
		switch {
		case i == 0:
			imp = site.ImportancePrimary
		case i < 3:
			imp = site.ImportanceSecondary
		}
		specs = append(specs, site.SectionSpec{Type: t, Importance: imp, Purpose: sectionPurpose(t, cfg)})
	}
	specs = append(specs, site.SectionSpec{
		Type:       site.SectionContact,
		Importance: site.ImportanceSecondary,
		Purpose:    "Turn visitors into enquiries",
	})

	for i := range specs {
		specs[i].Order = i + 1
	}
	return site.SectionPlan{Sections: specs}
}

func sectionPurpose(sectionType string, cfg site.BusinessConfiguration) string {
	switch sectionType {
	case site.SectionServices:
		return "Show what " + cfg.ProjectName + " offers"
	case site.SectionAbout:
		return "Tell the story behind " + cfg.ProjectName
	case site.SectionTeam:
		return "Put faces to the business"
	case site.SectionTestimonials:
		return "Build trust with client feedback"
	case site.SectionFAQ:
		return "Answer common questions before they are asked"
	case site.SectionMenu:
		return "Present the menu"
	case site.SectionGallery:
		return "Show the work and the space"
	case site.SectionPricing:
		return "Make pricing easy to compare"
	case site.SectionProcess:
		return "Explain how working together looks"
	default:
		return fmt.Sprintf("Present the %s section", sectionType)
	}
}
