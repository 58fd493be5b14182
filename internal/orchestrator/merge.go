package orchestrator

import (
	"github.com/dusk-indust/sitegen/internal/site"
)

// outputs holds the typed stage results of one run. Each field is written
// by exactly one stage and read only by stages in later waves, so the
// scheduler's wave join orders every access.
type outputs struct {
	strategy  site.Result[site.DesignStrategy]
	sections  site.Result[site.SectionPlan]
	style     site.Result[site.StyleSystem]
	layout    site.Result[site.Layout]
	imagePlan site.Result[site.ImagePlan]
	images    site.Result[[]site.Result[site.GeneratedImage]]
	copy      site.Result[[]site.SectionCopy]
	seo       site.Result[site.SEOMetadata]
	code      site.Result[site.CodeBundle]
}

// requiredStages must produce a value, AI or fallback, for an artifact to
// be usable.
var requiredStages = []site.StageName{
	site.StageSectionPlanner,
	site.StageStyleDesigner,
	site.StageLayout,
	site.StageCopywriter,
}

func (o *outputs) ok(stage site.StageName) bool {
	switch stage {
	case site.StageDesignStrategy:
		return o.strategy.OK()
	case site.StageSectionPlanner:
		return o.sections.OK()
	case site.StageStyleDesigner:
		return o.style.OK()
	case site.StageLayout:
		return o.layout.OK()
	case site.StageImagePlanner:
		return o.imagePlan.OK()
	case site.StageImageGenerator:
		return o.images.OK()
	case site.StageCopywriter:
		return o.copy.OK()
	case site.StageSEO:
		return o.seo.OK()
	case site.StageCodeAssembler:
		return o.code.OK()
	default:
		return false
	}
}

func (o *outputs) missingRequired() []site.StageName {
	var missing []site.StageName
	for _, s := range requiredStages {
		if !o.ok(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

func ptr[T any](r site.Result[T]) *T {
	if !r.OK() {
		return nil
	}
	v := r.Value
	return &v
}

// assemble merges the stage outputs and final stage states into an
// artifact. The image planner is rule-based by construction, so its
// fallback flag does not mark the artifact degraded.
func assemble(cfg site.BusinessConfiguration, o *outputs, states []StageState) *site.SiteArtifact {
	a := &site.SiteArtifact{
		Slug:        cfg.Slug(),
		ProjectName: cfg.ProjectName,
		Strategy:    ptr(o.strategy),
		SectionPlan: ptr(o.sections),
		Style:       ptr(o.style),
		Layout:      ptr(o.layout),
		SEO:         ptr(o.seo),
		Code:        ptr(o.code),
		Outcomes:    make(map[site.StageName]site.Outcome, len(states)),
	}
	if o.images.OK() {
		a.Images = o.images.Value
	}
	if o.copy.OK() {
		a.Copy = o.copy.Value
	}

	for _, st := range states {
		a.Outcomes[st.Stage] = site.Outcome{
			Status:       string(st.Status),
			UsedFallback: st.UsedFallback,
			Error:        st.Kind,
		}
		if st.Status != StatusCompleted {
			a.Partial = true
		}
		if st.UsedFallback && st.Stage != site.StageImagePlanner {
			a.Degraded = true
		}
	}
	return a
}
