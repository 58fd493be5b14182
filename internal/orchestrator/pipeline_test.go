package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/stages"
)

// fakeInvoker answers provider calls through fn and records the stages
// that called.
type fakeInvoker struct {
	mu     sync.Mutex
	stages []site.StageName
	fn     func(ctx context.Context, id string, req provider.Request) site.Result[*provider.Response]
}

func (f *fakeInvoker) Invoke(ctx context.Context, id string, req provider.Request) site.Result[*provider.Response] {
	f.mu.Lock()
	f.stages = append(f.stages, req.Stage)
	f.mu.Unlock()
	return f.fn(ctx, id, req)
}

func acmeLaw() site.BusinessConfiguration {
	return site.BusinessConfiguration{
		ProjectName:     "Acme Law",
		Industry:        "Legal Services",
		TargetAudiences: []string{"small businesses", "families"},
		Tone:            "confident",
		Location:        site.Location{City: "Springfield", Region: "IL", Country: "USA"},
		Services:        []string{"contract law", "estate planning", "litigation"},
	}
}

func TestPipeline_OfflineProducesDegradedArtifact(t *testing.T) {
	p := NewPipeline(nil, Options{Metrics: metrics.New()})
	assert.Equal(t, ModeOffline, p.Mode())

	c := &collector{}
	artifact, err := p.Generate(context.Background(), acmeLaw(), c.observe)
	require.NoError(t, err)
	require.NotNil(t, artifact)

	assert.Equal(t, "acme-law", artifact.Slug)
	assert.Equal(t, "Acme Law", artifact.ProjectName)
	assert.True(t, artifact.Degraded)
	assert.False(t, artifact.Partial)
	require.Len(t, artifact.Outcomes, 9)
	for stage, o := range artifact.Outcomes {
		assert.Equal(t, string(StatusCompleted), o.Status, stage)
		assert.True(t, o.UsedFallback, stage)
	}

	require.NotNil(t, artifact.SEO)
	assert.Equal(t, "LegalService", artifact.SEO.SchemaType())
	assert.Equal(t, "acme-law", artifact.SEO.Slug)
	assert.Empty(t, CheckCoherence(artifact))

	require.NotNil(t, artifact.Code)
	assert.Equal(t, stages.HomePagePath, artifact.Code.Files[0].Path)
	for _, img := range artifact.Images {
		assert.True(t, img.UsedFallback)
		assert.NotEmpty(t, img.Value.URL)
	}

	assert.IsNonDecreasing(t, c.aggregates())
	assert.Equal(t, 100, c.events[len(c.events)-1].Aggregate)
}

func TestPipeline_ProviderAnswerIsNotDegradedForThatStage(t *testing.T) {
	inv := &fakeInvoker{fn: func(_ context.Context, _ string, req provider.Request) site.Result[*provider.Response] {
		return site.Success(&provider.Response{
			Text: `{"personality":["trustworthy"],"colorMood":["cool"],"sectionPriority":["services"],"visualStyle":"classic"}`,
		}, false)
	}}
	p := NewPipeline(inv, Options{Chains: map[site.StageName]provider.Chain{
		site.StageDesignStrategy: {"openai"},
	}})
	assert.Equal(t, ModePartial, p.Mode())

	artifact, err := p.Generate(context.Background(), acmeLaw())
	require.NoError(t, err)

	assert.False(t, artifact.Outcomes[site.StageDesignStrategy].UsedFallback)
	assert.True(t, artifact.Outcomes[site.StageCopywriter].UsedFallback)
	assert.Equal(t, "classic", artifact.Strategy.VisualStyle)
	assert.Equal(t, []site.StageName{site.StageDesignStrategy}, inv.stages)
}

func TestPipeline_ImagePlannerAloneDoesNotDegrade(t *testing.T) {
	o := &outputs{}
	states := []StageState{
		{Stage: site.StageLayout, Status: StatusCompleted},
		{Stage: site.StageImagePlanner, Status: StatusCompleted, UsedFallback: true},
	}
	a := assemble(acmeLaw(), o, states)
	assert.False(t, a.Degraded)
	assert.False(t, a.Partial)
}

func TestPipeline_CancelledDuringSecondWave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := &fakeInvoker{fn: func(ctx context.Context, id string, req provider.Request) site.Result[*provider.Response] {
		cancel()
		return site.Failure[*provider.Response](site.KindCancelled, context.Canceled)
	}}
	p := NewPipeline(inv, Options{Chains: map[site.StageName]provider.Chain{
		site.StageLayout: {"slow"},
	}})

	c := &collector{}
	artifact, err := p.Generate(ctx, acmeLaw(), c.observe)
	require.Error(t, err)
	assert.Nil(t, artifact)

	var failure *PipelineFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, site.KindCancelled, failure.Kind)
	assert.ErrorIs(t, err, site.ErrCancelled)

	partial := failure.Partial
	require.NotNil(t, partial)
	assert.True(t, partial.Partial)
	assert.NotNil(t, partial.Strategy)
	assert.NotNil(t, partial.SectionPlan)
	assert.NotNil(t, partial.Style)
	assert.Nil(t, partial.Layout)
	assert.Nil(t, partial.Code)

	assert.Equal(t, string(StatusFailed), partial.Outcomes[site.StageLayout].Status)
	assert.Equal(t, site.KindCancelled, partial.Outcomes[site.StageLayout].Error)
	assert.Equal(t, string(StatusSkipped), partial.Outcomes[site.StageCodeAssembler].Status)
	assert.IsNonDecreasing(t, c.aggregates())
}

// slowFailing answers every call after delay with ProviderUnavailable.
func slowFailing(delay time.Duration) *fakeInvoker {
	return &fakeInvoker{fn: func(ctx context.Context, _ string, _ provider.Request) site.Result[*provider.Response] {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		return site.Failure[*provider.Response](site.KindProviderUnavailable, errors.New("503"))
	}}
}

func TestPipeline_DeadlineBeforeRequiredStages(t *testing.T) {
	chains := map[site.StageName]provider.Chain{}
	for _, s := range DefaultGraph().Stages() {
		chains[s] = provider.Chain{"a", "b"}
	}
	p := NewPipeline(slowFailing(30*time.Millisecond), Options{Chains: chains, Deadline: 40 * time.Millisecond})

	c := &collector{}
	artifact, err := p.Generate(context.Background(), acmeLaw(), c.observe)
	assert.Nil(t, artifact)

	var failure *PipelineFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, KindDeadlineExceeded, failure.Kind)
	assert.Contains(t, failure.Message, "deadline of 40ms")
	assert.Contains(t, failure.Stages, site.StageLayout)
	assert.Contains(t, failure.Stages, site.StageCopywriter)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	partial := failure.Partial
	require.NotNil(t, partial)
	assert.True(t, partial.Partial)
	assert.NotNil(t, partial.SectionPlan, "first-wave fallbacks are kept")
	assert.NotNil(t, partial.Style)
	assert.Nil(t, partial.Layout)
	assert.Equal(t, string(StatusSkipped), partial.Outcomes[site.StageLayout].Status)
	assert.IsNonDecreasing(t, c.aggregates())
}

func TestPipeline_DeadlineAfterRequiredStagesReturnsPartial(t *testing.T) {
	p := NewPipeline(slowFailing(60*time.Millisecond), Options{
		Chains:   map[site.StageName]provider.Chain{site.StageCopywriter: {"slow"}},
		Deadline: 40 * time.Millisecond,
	})

	artifact, err := p.Generate(context.Background(), acmeLaw())
	require.NoError(t, err)
	require.NotNil(t, artifact)

	assert.True(t, artifact.Partial)
	assert.NotEmpty(t, artifact.Copy)
	assert.True(t, artifact.Outcomes[site.StageCopywriter].UsedFallback)
	assert.Equal(t, string(StatusSkipped), artifact.Outcomes[site.StageSEO].Status)
	assert.Equal(t, string(StatusSkipped), artifact.Outcomes[site.StageCodeAssembler].Status)
	assert.Nil(t, artifact.Code)
}

func TestPipeline_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(nil, Options{}).Generate(ctx, acmeLaw())
	var failure *PipelineFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, site.KindCancelled, failure.Kind)
	assert.Nil(t, failure.Partial.SectionPlan)
}

func TestPipeline_InvalidConfiguration(t *testing.T) {
	cfg := acmeLaw()
	cfg.Industry = " "

	inv := &fakeInvoker{fn: func(context.Context, string, provider.Request) site.Result[*provider.Response] {
		t.Fatal("no provider may be called for an invalid configuration")
		return site.Result[*provider.Response]{}
	}}
	artifact, err := NewPipeline(inv, Options{}).Generate(context.Background(), cfg)
	assert.Nil(t, artifact)

	var failure *PipelineFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, site.KindConfigurationInvalid, failure.Kind)
	assert.Contains(t, failure.Message, "industry")
	assert.True(t, errors.Is(err, site.ErrConfigurationInvalid))
}

func TestPipeline_DoesNotMutateInput(t *testing.T) {
	cfg := acmeLaw()
	before := cfg.Clone()

	_, err := NewPipeline(nil, Options{}).Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, before, cfg)
}

func TestPipelineFailure_Error(t *testing.T) {
	f := &PipelineFailure{
		Kind:    KindRequiredStageMissing,
		Message: "required stages produced no output",
		Stages:  []site.StageName{site.StageCopywriter},
	}
	assert.Equal(t, "pipeline: REQUIRED_STAGE_MISSING: required stages produced no output [copywriter]", f.Error())
	assert.Nil(t, errors.Unwrap(f))
}

func TestDetectMode(t *testing.T) {
	full := Options{Chains: map[site.StageName]provider.Chain{}}
	for _, s := range providerStages {
		full.Chains[s] = provider.Chain{"p"}
	}
	assert.Equal(t, ModeFull, DetectMode(full))

	delete(full.Chains, site.StageImageGenerator)
	assert.Equal(t, ModeTextOnly, DetectMode(full))

	assert.Equal(t, ModeOffline, DetectMode(Options{}))
	assert.Equal(t, "text-only", ModeTextOnly.String())
}
