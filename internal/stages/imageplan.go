package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/sitegen/internal/site"
)

// ImagePlanInput is the input of the image planner.
type ImagePlanInput struct {
	Config site.BusinessConfiguration
	Layout site.Layout
	Style  site.StyleSystem
}

// ImagePlanner decides which images the site needs. It is rule-based and
// never calls a provider, so its result is always flagged as fallback.
type ImagePlanner struct{ base }

var _ Executor[ImagePlanInput, site.ImagePlan] = (*ImagePlanner)(nil)

// NewImagePlanner creates the stage.
func NewImagePlanner(env Env) *ImagePlanner {
	return &ImagePlanner{newBase(site.StageImagePlanner, env, nil)}
}

// Execute runs the stage.
func (s *ImagePlanner) Execute(ctx context.Context, in ImagePlanInput, r Reporter) (res site.Result[site.ImagePlan]) {
	defer recoverTo(&s.base, &res, func() site.ImagePlan { return site.ImagePlan{} })
	if err := ctx.Err(); err != nil {
		return cancelled[site.ImagePlan](&s.base, site.NewError(site.KindCancelled, string(s.name), err))
	}
	plan := PlanImages(in.Config, in.Layout, in.Style)
	r.Report(ProgressRequestBuilt, fmt.Sprintf("%d images planned", len(plan.Specs)))
	return succeed(&s.base, r, plan, PathFallback, "")
}

type imageSlot struct {
	count  int
	width  int
	height int
}

var imageSlots = map[string]imageSlot{
	site.SectionHero:    {1, 1792, 1024},
	site.SectionAbout:   {1, 1024, 1024},
	site.SectionTeam:    {1, 1024, 768},
	site.SectionGallery: {3, 1024, 1024},
	site.SectionMenu:    {2, 1024, 768},
}

// PlanImages lists the images for the home page sections, in page order.
func PlanImages(cfg site.BusinessConfiguration, layout site.Layout, style site.StyleSystem) site.ImagePlan {
	var plan site.ImagePlan
	for _, sec := range layout.Home().Sections {
		subjects := imageSubjects(sec.Type, cfg)
		for i, subj := range subjects {
			slot, ok := imageSlots[sec.Type]
			if !ok {
				slot = imageSlot{1, 1024, 768}
			}
			plan.Specs = append(plan.Specs, site.ImageSpec{
				ID:        fmt.Sprintf("%s-%d", sec.Type, i+1),
				Purpose:   subj,
				Prompt:    imagePrompt(cfg, style, subj),
				Placement: sec.Type,
				Alt:       altText(cfg, subj),
				Width:     slot.width,
				Height:    slot.height,
			})
		}
	}
	return plan
}

func imageSubjects(sectionType string, cfg site.BusinessConfiguration) []string {
	industry := strings.ToLower(strings.TrimSpace(cfg.Industry))
	switch sectionType {
	case site.SectionHero:
		return []string{fmt.Sprintf("welcoming %s workspace", industry)}
	case site.SectionAbout:
		return []string{fmt.Sprintf("the people behind a %s business at work", industry)}
	case site.SectionTeam:
		return []string{fmt.Sprintf("friendly %s team portrait", industry)}
	case site.SectionServices:
		var out []string
		for _, svc := range cfg.Services {
			if svc = strings.TrimSpace(svc); svc != "" && len(out) < 3 {
				out = append(out, svc)
			}
		}
		if len(out) == 0 {
			out = append(out, industry+" services")
		}
		return out
	case site.SectionGallery:
		n := imageSlots[site.SectionGallery].count
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("%s gallery photo %d", industry, i+1)
		}
		return out
	case site.SectionMenu:
		return []string{"signature dish, plated", "seasonal special, plated"}
	default:
		return nil
	}
}

func imagePrompt(cfg site.BusinessConfiguration, style site.StyleSystem, subject string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional photograph for %s, a %s business", cfg.ProjectName, strings.ToLower(cfg.Industry))
	if cfg.Location.City != "" {
		fmt.Fprintf(&b, " in %s", cfg.Location.City)
	}
	fmt.Fprintf(&b, ": %s.", subject)
	if style.Palette.Primary != "" {
		fmt.Fprintf(&b, " Color accents in %s and %s.", style.Palette.Primary, style.Palette.Accent)
	}
	b.WriteString(" Natural light, no text, no logos.")
	return b.String()
}

func altText(cfg site.BusinessConfiguration, subject string) string {
	return fmt.Sprintf("%s: %s", cfg.ProjectName, subject)
}
