package stages

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// fakeInvoker records provider calls and answers through fn.
type fakeInvoker struct {
	mu    sync.Mutex
	calls []string
	reqs  []provider.Request
	fn    func(ctx context.Context, id string, req provider.Request) site.Result[*provider.Response]
}

func (f *fakeInvoker) Invoke(ctx context.Context, id string, req provider.Request) site.Result[*provider.Response] {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.fn(ctx, id, req)
}

func (f *fakeInvoker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// answers returns a fakeInvoker replying per provider id; unknown ids are
// unavailable.
func answers(m map[string]site.Result[*provider.Response]) *fakeInvoker {
	return &fakeInvoker{fn: func(_ context.Context, id string, _ provider.Request) site.Result[*provider.Response] {
		if res, ok := m[id]; ok {
			return res
		}
		return unavailable(id)
	}}
}

func text(s string) site.Result[*provider.Response] {
	return site.Success(&provider.Response{Text: s}, false)
}

func unavailable(id string) site.Result[*provider.Response] {
	return site.Failure[*provider.Response](site.KindProviderUnavailable,
		site.NewError(site.KindProviderUnavailable, id, errors.New("connection refused")))
}

// recorder captures reported milestones.
type recorder struct {
	mu       sync.Mutex
	progress []int
	messages []string
}

func (r *recorder) Report(progress int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
	r.messages = append(r.messages, message)
}

func acme() site.BusinessConfiguration {
	return site.BusinessConfiguration{
		ProjectName:     "Acme Law",
		Industry:        "Legal Services",
		TargetAudiences: []string{"small businesses", "families"},
		Tone:            "confident",
		Location:        site.Location{City: "Springfield", Region: "IL", Country: "USA"},
		Services:        []string{"contract law", "estate planning", "litigation"},
	}
}

const validStrategy = `{"personality":["bold","modern"],"colorMood":["cool"],"sectionPriority":["services","contact"],"visualStyle":" Minimal "}`

func TestGenerate_PrimaryProvider(t *testing.T) {
	inv := answers(map[string]site.Result[*provider.Response]{"openai": text("```json\n" + validStrategy + "\n```")})
	stage := NewDesignStrategy(Env{Providers: inv}, provider.Chain{"openai", "anthropic"})
	rec := &recorder{}

	res := stage.Execute(context.Background(), StrategyInput{Config: acme()}, rec)

	require.True(t, res.OK())
	assert.False(t, res.UsedFallback)
	assert.Equal(t, []string{"openai"}, inv.Calls())
	assert.Equal(t, "minimal", res.Value.VisualStyle)
	assert.Equal(t, []string{"hero", "services", "contact"}, res.Value.SectionPriority)
	assert.Contains(t, rec.messages, "validation passed")
	assert.IsNonDecreasing(t, rec.progress)
}

func TestGenerate_UnavailableTriesNextProvider(t *testing.T) {
	inv := answers(map[string]site.Result[*provider.Response]{"anthropic": text(validStrategy)})
	stage := NewDesignStrategy(Env{Providers: inv}, provider.Chain{"openai", "anthropic"})

	res := stage.Execute(context.Background(), StrategyInput{Config: acme()}, Discard)

	require.True(t, res.OK())
	assert.False(t, res.UsedFallback)
	assert.Equal(t, []string{"openai", "anthropic"}, inv.Calls())
	assert.Equal(t, []string{"bold", "modern"}, res.Value.Personality)
}

func TestGenerate_MalformedFallsBackWithoutNextProvider(t *testing.T) {
	inv := answers(map[string]site.Result[*provider.Response]{
		"openai":    text(`{"personality": "not a list"}`),
		"anthropic": text(validStrategy),
	})
	stage := NewDesignStrategy(Env{Providers: inv}, provider.Chain{"openai", "anthropic"})
	rec := &recorder{}

	res := stage.Execute(context.Background(), StrategyInput{Config: acme()}, rec)

	require.True(t, res.OK())
	assert.True(t, res.UsedFallback)
	assert.Equal(t, []string{"openai"}, inv.Calls())
	assert.Equal(t, FallbackStrategy(acme()), res.Value)
	assert.Contains(t, rec.messages, "fallback invoked")
}

func TestGenerate_AllUnavailable(t *testing.T) {
	inv := answers(nil)
	stage := NewDesignStrategy(Env{Providers: inv}, provider.Chain{"a", "b", "c"})

	res := stage.Execute(context.Background(), StrategyInput{Config: acme()}, Discard)

	require.True(t, res.OK())
	assert.True(t, res.UsedFallback)
	assert.Equal(t, []string{"a", "b", "c"}, inv.Calls())
}

func TestGenerate_NoProviders(t *testing.T) {
	res := NewDesignStrategy(Env{}, nil).Execute(context.Background(), StrategyInput{Config: acme()}, Discard)
	require.True(t, res.OK())
	assert.True(t, res.UsedFallback)
}

func TestGenerate_CancelledContextMakesNoCalls(t *testing.T) {
	inv := answers(map[string]site.Result[*provider.Response]{"openai": text(validStrategy)})
	stage := NewDesignStrategy(Env{Providers: inv}, provider.Chain{"openai"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := stage.Execute(ctx, StrategyInput{Config: acme()}, Discard)

	assert.False(t, res.OK())
	assert.Equal(t, site.KindCancelled, res.Kind)
	assert.ErrorIs(t, res.Error(), site.ErrCancelled)
	assert.Empty(t, inv.Calls())
}

func TestGenerate_CancelledMidChainStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inv := &fakeInvoker{fn: func(_ context.Context, id string, _ provider.Request) site.Result[*provider.Response] {
		cancel()
		return site.Failure[*provider.Response](site.KindCancelled, site.NewError(site.KindCancelled, id, context.Canceled))
	}}
	stage := NewSectionPlanner(Env{Providers: inv}, provider.Chain{"a", "b"})

	res := stage.Execute(ctx, SectionsInput{Config: acme()}, Discard)

	assert.Equal(t, site.KindCancelled, res.Kind)
	assert.Equal(t, []string{"a"}, inv.Calls())
}

func TestGenerate_PanicRecoversToFallback(t *testing.T) {
	inv := &fakeInvoker{fn: func(context.Context, string, provider.Request) site.Result[*provider.Response] {
		panic("boom")
	}}
	stage := NewStyleDesigner(Env{Providers: inv}, provider.Chain{"openai"})

	res := stage.Execute(context.Background(), StyleInput{Config: acme()}, Discard)

	require.True(t, res.OK())
	assert.True(t, res.UsedFallback)
	assert.Equal(t, FallbackStyle(acme()), res.Value)
}

func TestTextRequest_CarriesEnvSettings(t *testing.T) {
	inv := answers(nil)
	stage := NewCopywriter(Env{Providers: inv, MaxTokens: 900, Temperature: 0.3}, provider.Chain{"x"})
	stage.Execute(context.Background(), CopyInput{Config: acme(), Sections: FallbackSections(acme())}, Discard)

	require.Len(t, inv.reqs, 1)
	req := inv.reqs[0]
	assert.Equal(t, provider.KindText, req.Kind)
	assert.Equal(t, site.StageCopywriter, req.Stage)
	assert.True(t, req.JSON)
	assert.Equal(t, 900, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.Contains(t, req.Prompt, "Acme Law")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":{\"b\":2}} Thanks!", `{"a":{"b":2}}`},
		{"  no json  ", "no json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(extractJSON([]byte(tt.in))))
	}
}
