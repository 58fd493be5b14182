package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/stages"
)

var _ Generator = (*Pipeline)(nil)

// KindRequiredStageMissing means a stage the artifact cannot do without
// produced no value at all, not even a fallback.
const KindRequiredStageMissing site.ErrorKind = "REQUIRED_STAGE_MISSING"

// KindDeadlineExceeded means the aggregate deadline passed before every
// required stage had run. Partial holds the stages that did finish.
const KindDeadlineExceeded site.ErrorKind = "DEADLINE_EXCEEDED"

// PipelineFailure is the error returned by Generate when no complete
// artifact can be delivered. Partial carries whatever stages completed.
type PipelineFailure struct {
	Kind    site.ErrorKind     `json:"kind"`
	Message string             `json:"message"`
	Stages  []site.StageName   `json:"stages,omitempty"`
	Partial *site.SiteArtifact `json:"partial,omitempty"`
	Err     error              `json:"-"`
}

func (f *PipelineFailure) Error() string {
	if len(f.Stages) > 0 {
		return fmt.Sprintf("pipeline: %s: %s %v", f.Kind, f.Message, f.Stages)
	}
	return fmt.Sprintf("pipeline: %s: %s", f.Kind, f.Message)
}

func (f *PipelineFailure) Unwrap() error { return f.Err }

// Pipeline wires the stage executors to the scheduler.
type Pipeline struct {
	graph   *Graph
	opts    Options
	mode    Mode
	logger  *slog.Logger
	metrics *metrics.Metrics

	strategy  *stages.DesignStrategy
	sections  *stages.SectionPlanner
	style     *stages.StyleDesigner
	layout    *stages.LayoutGenerator
	imagePlan *stages.ImagePlanner
	images    *stages.ImageGenerator
	copy      *stages.Copywriter
	seo       *stages.SEOGenerator
	code      *stages.CodeAssembler
}

// NewPipeline creates a Pipeline calling providers through invoker. A nil
// invoker runs every stage on its fallback.
func NewPipeline(invoker stages.Invoker, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	env := stages.Env{
		Providers:   invoker,
		Logger:      logger,
		Metrics:     opts.Metrics,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	mode := DetectMode(opts)
	if invoker == nil {
		mode = ModeOffline
	}
	return &Pipeline{
		graph:   DefaultGraph(),
		opts:    opts,
		mode:    mode,
		logger:  logging.Component(logger, "pipeline"),
		metrics: opts.Metrics,

		strategy:  stages.NewDesignStrategy(env, opts.Chain(site.StageDesignStrategy)),
		sections:  stages.NewSectionPlanner(env, opts.Chain(site.StageSectionPlanner)),
		style:     stages.NewStyleDesigner(env, opts.Chain(site.StageStyleDesigner)),
		layout:    stages.NewLayoutGenerator(env, opts.Chain(site.StageLayout)),
		imagePlan: stages.NewImagePlanner(env),
		images:    stages.NewImageGenerator(env, opts.Chain(site.StageImageGenerator), opts.ImageConcurrency),
		copy:      stages.NewCopywriter(env, opts.Chain(site.StageCopywriter)),
		seo:       stages.NewSEOGenerator(env, opts.Chain(site.StageSEO)),
		code:      stages.NewCodeAssembler(env, opts.Chain(site.StageCodeAssembler)),
	}
}

// Mode reports which stages can reach a provider.
func (p *Pipeline) Mode() Mode { return p.mode }

// Graph returns the stage graph the pipeline runs.
func (p *Pipeline) Graph() *Graph { return p.graph }

// Generate runs every stage for cfg and assembles the artifact. Observers
// receive every progress event of the run.
//
// On cancellation the error is a *PipelineFailure of kind Cancelled whose
// Partial holds the completed outputs. When the aggregate deadline passes,
// the remaining stages are skipped and the artifact is returned with
// Partial set, provided the required stages completed. Otherwise the error
// is a *PipelineFailure of kind DeadlineExceeded naming the missing stages.
func (p *Pipeline) Generate(ctx context.Context, cfg site.BusinessConfiguration, observers ...Observer) (*site.SiteArtifact, error) {
	start := time.Now()
	p.metrics.RunStarted()
	if err := cfg.Validate(); err != nil {
		p.finish("invalid", start)
		return nil, &PipelineFailure{Kind: site.KindConfigurationInvalid, Message: err.Error(), Err: err}
	}
	cfg = cfg.Clone()

	logger := p.logger.With("project", cfg.ProjectName, "slug", cfg.Slug())
	logger.Info("pipeline started", "mode", p.mode.String())

	state := NewState(p.graph.Stages())
	progress := NewProgress(state)
	for _, o := range observers {
		if o != nil {
			progress.Subscribe(o)
		}
	}

	out := &outputs{}
	scheduler := NewScheduler(p.graph, progress, p.opts.Deadline, logger)
	summary, runErr := scheduler.Run(ctx, p.tasks(cfg, out))

	artifact := assemble(cfg, out, state.Snapshot())
	for _, issue := range CheckCoherence(artifact) {
		logger.Warn("coherence issue", "stage", issue.Stage, "issue", issue.Description)
	}

	switch {
	case site.KindOf(runErr) == site.KindConfigurationInvalid:
		p.finish("invalid", start)
		return nil, &PipelineFailure{Kind: site.KindConfigurationInvalid, Message: runErr.Error(), Err: runErr}

	case runErr != nil:
		artifact.Partial = true
		p.finish("cancelled", start)
		logger.Info("pipeline cancelled", "skipped", summary.Skipped)
		return nil, &PipelineFailure{
			Kind:    site.KindCancelled,
			Message: "generation cancelled",
			Partial: artifact,
			Err:     runErr,
		}
	}

	missing := out.missingRequired()
	switch {
	case len(missing) > 0 && summary.DeadlineExceeded:
		artifact.Partial = true
		p.finish("deadline", start)
		logger.Warn("pipeline deadline passed before required stages ran",
			"deadline", p.opts.Deadline, "missing", joinStages(missing), "waves", summary.Waves)
		return nil, &PipelineFailure{
			Kind:    KindDeadlineExceeded,
			Message: fmt.Sprintf("deadline of %s passed before required stages ran", p.opts.Deadline),
			Stages:  missing,
			Partial: artifact,
			Err:     context.DeadlineExceeded,
		}

	case len(missing) > 0:
		p.finish("failed", start)
		return nil, &PipelineFailure{
			Kind:    KindRequiredStageMissing,
			Message: "required stages produced no output",
			Stages:  missing,
			Partial: artifact,
			Err:     fmt.Errorf("missing %s", joinStages(missing)),
		}
	}

	outcome := "success"
	switch {
	case artifact.Partial:
		outcome = "partial"
	case artifact.Degraded:
		outcome = "degraded"
	}
	p.finish(outcome, start)
	logger.Info("pipeline finished",
		"outcome", outcome,
		"waves", summary.Waves,
		"deadline_exceeded", summary.DeadlineExceeded,
		"duration", time.Since(start))
	return artifact, nil
}

func (p *Pipeline) finish(outcome string, start time.Time) {
	p.metrics.RunFinished(outcome, time.Since(start))
}

// tasks binds every stage executor to the run's typed outputs.
func (p *Pipeline) tasks(cfg site.BusinessConfiguration, o *outputs) map[site.StageName]Task {
	return map[site.StageName]Task{
		site.StageDesignStrategy: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.strategy = p.strategy.Execute(ctx, stages.StrategyInput{Config: cfg}, r)
			return ResultOf(o.strategy)
		},
		site.StageSectionPlanner: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.sections = p.sections.Execute(ctx, stages.SectionsInput{Config: cfg}, r)
			return ResultOf(o.sections)
		},
		site.StageStyleDesigner: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.style = p.style.Execute(ctx, stages.StyleInput{Config: cfg}, r)
			return ResultOf(o.style)
		},
		site.StageLayout: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.layout = p.layout.Execute(ctx, stages.LayoutInput{Config: cfg, Sections: o.sections.Value}, r)
			return ResultOf(o.layout)
		},
		site.StageImagePlanner: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.imagePlan = p.imagePlan.Execute(ctx, stages.ImagePlanInput{
				Config: cfg, Layout: o.layout.Value, Style: o.style.Value,
			}, r)
			return ResultOf(o.imagePlan)
		},
		site.StageCopywriter: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.copy = p.copy.Execute(ctx, stages.CopyInput{
				Config: cfg, Sections: o.sections.Value, Layout: o.layout.Value,
			}, r)
			return ResultOf(o.copy)
		},
		site.StageImageGenerator: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.images = p.images.Execute(ctx, stages.ImageGenInput{
				Config: cfg, Plan: o.imagePlan.Value, Style: o.style.Value,
			}, r)
			return ResultOf(o.images)
		},
		site.StageSEO: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.seo = p.seo.Execute(ctx, stages.SEOInput{
				Config:   cfg,
				Strategy: o.strategy.Value,
				Layout:   o.layout.Value,
				Copy:     o.copy.Value,
				Images:   o.imagePlan.Value,
			}, r)
			return ResultOf(o.seo)
		},
		site.StageCodeAssembler: func(ctx context.Context, r stages.Reporter) TaskResult {
			o.code = p.code.Execute(ctx, stages.CodeInput{
				Config: cfg,
				Style:  o.style.Value,
				Layout: o.layout.Value,
				Copy:   o.copy.Value,
				Images: o.images.Value,
				SEO:    o.seo.Value,
			}, r)
			return ResultOf(o.code)
		},
	}
}

func joinStages(s []site.StageName) string {
	parts := make([]string, len(s))
	for i, n := range s {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
