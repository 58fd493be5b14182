package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/stages"
)

func coherentArtifact() *site.SiteArtifact {
	cfg := acmeLaw()
	plan := stages.FallbackSections(cfg)
	style := stages.FallbackStyle(cfg)
	layout := stages.FallbackLayout(cfg, plan)
	sectionCopy := stages.FallbackCopy(cfg, stages.RequiredSections(plan, layout))
	images := stages.PlanImages(cfg, layout, style)
	seo := stages.FallbackSEO(stages.SEOInput{Config: cfg, Layout: layout, Copy: sectionCopy, Images: images})
	return &site.SiteArtifact{
		Slug:   cfg.Slug(),
		Style:  &style,
		Layout: &layout,
		Copy:   sectionCopy,
		SEO:    &seo,
		Images: []site.Result[site.GeneratedImage]{
			site.Success(stages.Placeholder(images.Specs[0], style), true),
		},
		Code: &site.CodeBundle{Files: []site.GeneratedFile{{Path: stages.HomePagePath}}},
	}
}

func TestCheckCoherence_Clean(t *testing.T) {
	assert.Empty(t, CheckCoherence(coherentArtifact()))
	assert.Nil(t, CheckCoherence(nil))
}

func TestCheckCoherence_Issues(t *testing.T) {
	a := coherentArtifact()
	a.Copy = a.Copy[1:]
	a.Style.Palette.Accent = "orange"
	a.SEO.Slug = "other"
	a.Images = append(a.Images, site.Success(site.GeneratedImage{Spec: site.ImageSpec{ID: "hero-2"}}, false))
	a.Code.Files = nil

	issues := CheckCoherence(a)
	stagesWithIssues := make(map[site.StageName]int)
	for _, i := range issues {
		stagesWithIssues[i.Stage]++
	}
	assert.Positive(t, stagesWithIssues[site.StageCopywriter])
	assert.Equal(t, 1, stagesWithIssues[site.StageStyleDesigner])
	assert.Equal(t, 1, stagesWithIssues[site.StageSEO])
	assert.Equal(t, 1, stagesWithIssues[site.StageImageGenerator])
	assert.Equal(t, 1, stagesWithIssues[site.StageCodeAssembler])
}

func TestAssemble_FailedStageLeavesNilField(t *testing.T) {
	o := &outputs{
		sections: site.Success(site.SectionPlan{Sections: []site.SectionSpec{{Type: "hero"}}}, false),
		copy:     site.Failure[[]site.SectionCopy](site.KindCancelled, nil),
	}
	states := []StageState{
		{Stage: site.StageSectionPlanner, Status: StatusCompleted},
		{Stage: site.StageCopywriter, Status: StatusFailed, Kind: site.KindCancelled},
	}

	a := assemble(acmeLaw(), o, states)
	require.NotNil(t, a.SectionPlan)
	assert.Nil(t, a.Copy)
	assert.Nil(t, a.Style)
	assert.True(t, a.Partial)
	assert.False(t, a.Degraded)
	assert.Equal(t, site.Outcome{Status: "failed", Error: site.KindCancelled}, a.Outcomes[site.StageCopywriter])

	assert.ElementsMatch(t,
		[]site.StageName{site.StageStyleDesigner, site.StageLayout, site.StageCopywriter},
		o.missingRequired())
}
