package stages

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// ImageGenInput is the input of the image generator.
type ImageGenInput struct {
	Config site.BusinessConfiguration
	Plan   site.ImagePlan
	Style  site.StyleSystem
}

// ImageGenerator renders every planned image concurrently. Each image has
// its own result; an image whose providers all fail gets a deterministic
// placeholder, so the output always has one entry per planned image.
type ImageGenerator struct {
	base
	concurrency int64
}

var _ Executor[ImageGenInput, []site.Result[site.GeneratedImage]] = (*ImageGenerator)(nil)

// DefaultImageConcurrency bounds in-flight image calls when none is configured.
const DefaultImageConcurrency = 4

// NewImageGenerator creates the stage. concurrency bounds in-flight images.
func NewImageGenerator(env Env, chain provider.Chain, concurrency int) *ImageGenerator {
	if concurrency < 1 {
		concurrency = DefaultImageConcurrency
	}
	return &ImageGenerator{base: newBase(site.StageImageGenerator, env, chain), concurrency: int64(concurrency)}
}

// BuildImageRequest builds the provider request for one image.
func BuildImageRequest(spec site.ImageSpec) provider.Request {
	return provider.Request{
		Kind:  provider.KindImage,
		Stage: site.StageImageGenerator,
		Image: &provider.ImageParams{
			Prompt: spec.Prompt,
			Width:  spec.Width,
			Height: spec.Height,
			Style:  "photographic",
		},
	}
}

// Execute runs the stage.
func (s *ImageGenerator) Execute(ctx context.Context, in ImageGenInput, r Reporter) (res site.Result[[]site.Result[site.GeneratedImage]]) {
	specs := in.Plan.Specs
	results := make([]site.Result[site.GeneratedImage], len(specs))
	defer recoverTo(&s.base, &res, func() []site.Result[site.GeneratedImage] {
		return placeholders(specs, in.Style)
	})
	r.Report(ProgressRequestBuilt, fmt.Sprintf("generating %d images", len(specs)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	progress := func(spec site.ImageSpec) {
		mu.Lock()
		defer mu.Unlock()
		done++
		r.Report(progressCallStart+progressCallSpan*done/len(specs), fmt.Sprintf("image %s ready (%d/%d)", spec.ID, done, len(specs)))
	}

	sem := semaphore.NewWeighted(s.concurrency)
	for i, spec := range specs {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(specs); j++ {
				results[j] = site.Success(Placeholder(specs[j], in.Style), true)
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = s.one(ctx, spec, in.Style)
			progress(spec)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return cancelled[[]site.Result[site.GeneratedImage]](&s.base, site.NewError(site.KindCancelled, string(s.name), err))
	}

	usedFallback := len(specs) == 0 && len(s.chain) == 0
	providerID := ""
	for _, img := range results {
		if img.UsedFallback {
			usedFallback = true
		} else if providerID == "" {
			providerID = img.Value.Provider
		}
	}
	path := PathPrimary
	if usedFallback {
		path = PathFallback
	}
	return succeed(&s.base, r, results, path, providerID)
}

// one generates a single image, walking the chain and falling back to a
// placeholder. It never panics.
func (s *ImageGenerator) one(ctx context.Context, spec site.ImageSpec, style site.StyleSystem) (res site.Result[site.GeneratedImage]) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("image generation panicked", "image", spec.ID, "panic", p)
			res = site.Success(Placeholder(spec, style), true)
		}
	}()

	if s.env.Providers != nil {
		req := BuildImageRequest(spec)
		for _, id := range s.chain {
			if ctx.Err() != nil {
				break
			}
			out := s.env.Providers.Invoke(ctx, id, req)
			if out.OK() && out.Value.URL != "" {
				return site.Success(site.GeneratedImage{Spec: spec, URL: out.Value.URL, Provider: id}, false)
			}
			if out.Kind == site.KindCancelled {
				break
			}
			s.logger.Warn("image provider failed", "image", spec.ID, "provider", id, "kind", out.Kind, "error", out.Err)
		}
	}
	return site.Success(Placeholder(spec, style), true)
}

// Placeholder returns a deterministic placeholder image in the site colors.
func Placeholder(spec site.ImageSpec, style site.StyleSystem) site.GeneratedImage {
	bg, fg := "CBD5E0", "1A202C"
	if validHex(style.Palette.Primary) && validHex(style.Palette.Background) {
		bg = strings.TrimPrefix(style.Palette.Primary, "#")
		fg = strings.TrimPrefix(style.Palette.Background, "#")
	}
	return site.GeneratedImage{
		Spec: spec,
		URL: fmt.Sprintf("https://placehold.co/%dx%d/%s/%s/png?text=%s",
			spec.Width, spec.Height, bg, fg, url.QueryEscape(spec.Purpose)),
		Provider: "placeholder",
	}
}

func placeholders(specs []site.ImageSpec, style site.StyleSystem) []site.Result[site.GeneratedImage] {
	out := make([]site.Result[site.GeneratedImage], len(specs))
	for i, spec := range specs {
		out[i] = site.Success(Placeholder(spec, style), true)
	}
	return out
}
