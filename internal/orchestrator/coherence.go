package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/stages"
)

// CoherenceIssue is a cross-stage inconsistency found in an artifact.
type CoherenceIssue struct {
	Stage       site.StageName `json:"stage"`
	Description string         `json:"description"`
}

// CheckCoherence scans an assembled artifact for disagreements between
// stage outputs: layout sections without copy, invalid colors, SEO bounds,
// slug mismatches, images without URLs and missing home page markup.
// Issues are advisory; the artifact is still returned.
func CheckCoherence(a *site.SiteArtifact) []CoherenceIssue {
	if a == nil {
		return nil
	}
	var issues []CoherenceIssue
	add := func(stage site.StageName, format string, args ...any) {
		issues = append(issues, CoherenceIssue{Stage: stage, Description: fmt.Sprintf(format, args...)})
	}

	if a.Layout != nil && a.Copy != nil {
		written := make(map[string]bool, len(a.Copy))
		for _, c := range a.Copy {
			written[c.Section] = true
		}
		for _, p := range a.Layout.Pages {
			for _, s := range p.Sections {
				if !written[s.Type] {
					add(site.StageCopywriter, "page %s section %s has no copy", p.Slug, s.Type)
				}
			}
		}
	}

	if a.Style != nil {
		if err := stages.ValidatePalette(a.Style.Palette); err != nil {
			add(site.StageStyleDesigner, "palette: %v", err)
		}
	}

	if a.SEO != nil {
		if n := utf8.RuneCountInString(a.SEO.Title); n > stages.TitleMax {
			add(site.StageSEO, "title is %d characters, limit %d", n, stages.TitleMax)
		}
		if n := utf8.RuneCountInString(a.SEO.Description); n < stages.DescriptionMin || n > stages.DescriptionMax {
			add(site.StageSEO, "description is %d characters, want %d-%d", n, stages.DescriptionMin, stages.DescriptionMax)
		}
		if a.SEO.Slug != a.Slug {
			add(site.StageSEO, "slug %q does not match artifact slug %q", a.SEO.Slug, a.Slug)
		}
	}

	for _, img := range a.Images {
		if img.OK() && strings.TrimSpace(img.Value.URL) == "" {
			add(site.StageImageGenerator, "image %s has no URL", img.Value.Spec.ID)
		}
	}

	if a.Code != nil {
		found := false
		for _, f := range a.Code.Files {
			if f.Path == stages.HomePagePath {
				found = true
				break
			}
		}
		if !found {
			add(site.StageCodeAssembler, "bundle has no %s", stages.HomePagePath)
		}
	}
	return issues
}
