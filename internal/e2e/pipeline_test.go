//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/config"
	"github.com/dusk-indust/sitegen/internal/export"
	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/server"
	"github.com/dusk-indust/sitegen/internal/session"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/sitegraph"
	"github.com/dusk-indust/sitegen/internal/stages"
)

const acmeBody = `{
  "projectName": "Acme Law",
  "industry": "Legal Services",
  "tone": "professional",
  "location": {"city": "Austin", "region": "TX"},
  "services": ["Contract Law", "Estate Planning", "Litigation"]
}`

type stack struct {
	srv      *httptest.Server
	sessions *session.Registry
	index    sitegraph.Store
	exporter *export.Writer
}

func newStack(t *testing.T, p *orchestrator.Pipeline) *stack {
	t.Helper()
	st := &stack{
		sessions: session.NewRegistry(),
		index:    sitegraph.NewMemStore(),
		exporter: export.NewWriter(memfs.New()),
	}
	s := server.New(server.Options{
		Generator: p,
		Sessions:  st.sessions,
		Index:     st.index,
		Exporter:  st.exporter,
		Metrics:   metrics.New(),
		Mode:      p.Mode().String(),
	})
	st.srv = httptest.NewServer(s.Handler())
	t.Cleanup(st.srv.Close)
	return st
}

// generate posts acmeBody and returns the progress events and the closing
// frame.
func (st *stack) generate(t *testing.T) ([]orchestrator.Event, server.Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, st.srv.URL+"/api/generate", strings.NewReader(acmeBody))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var (
		events []orchestrator.Event
		last   server.Frame
	)
	defer resp.Body.Close()
	for f, err := range server.Events(resp.Body) {
		require.NoError(t, err)
		last = f
		if f.Event != server.EventProgress {
			continue
		}
		var ev orchestrator.Event
		require.NoError(t, json.Unmarshal(f.Data, &ev))
		events = append(events, ev)
	}
	return events, last
}

func assertProgress(t *testing.T, events []orchestrator.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	aggregates := make([]int, len(events))
	for i, ev := range events {
		aggregates[i] = ev.Aggregate
	}
	assert.IsNonDecreasing(t, aggregates)
	assert.Equal(t, 100, aggregates[len(aggregates)-1])

	started := map[site.StageName]int{}
	for _, ev := range events {
		if ev.Status == orchestrator.StatusRunning && ev.Progress == 0 {
			started[ev.Stage]++
		}
	}
	for stage, n := range started {
		assert.Equal(t, 1, n, "stage %s started more than once", stage)
	}
}

func assertSiteWritten(t *testing.T, st *stack) {
	t.Helper()
	ctx := context.Background()

	m, err := st.exporter.ReadManifest("acme-law")
	require.NoError(t, err)
	assert.Len(t, m.Stages, 9)
	assert.Contains(t, m.Files, "content/copy.json")
	assert.Contains(t, m.Files, "images/manifest.json")

	sections, err := st.index.Sections(ctx, "acme-law")
	require.NoError(t, err)
	assert.NotEmpty(t, sections)
	assert.Equal(t, "hero", sections[0].Type)

	diagram, err := export.GenerateMermaid(ctx, st.index, "acme-law")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(diagram, "graph TD"))
}

// TestE2E_Offline runs every stage on its fallback through the HTTP
// boundary and checks the exported and indexed site.
func TestE2E_Offline(t *testing.T) {
	p := orchestrator.NewPipeline(nil, orchestrator.Options{})
	require.Equal(t, orchestrator.ModeOffline, p.Mode())
	st := newStack(t, p)

	events, last := st.generate(t)
	assertProgress(t, events)
	require.Equal(t, server.EventResult, last.Event)

	var result server.ResultEvent
	require.NoError(t, json.Unmarshal(last.Data, &result))
	a := result.Artifact
	require.NotNil(t, a)
	assert.True(t, a.Degraded)
	assert.False(t, a.Partial)
	require.NotNil(t, a.SEO)
	assert.Equal(t, "LegalService", a.SEO.SchemaType())
	assert.LessOrEqual(t, len(a.SEO.Title), stages.TitleMax)
	assert.GreaterOrEqual(t, len(a.SEO.Description), stages.DescriptionMin)
	assert.LessOrEqual(t, len(a.SEO.Description), stages.DescriptionMax)
	require.NotNil(t, a.Code)
	assert.NotEmpty(t, a.Code.Files)
	assert.Empty(t, orchestrator.CheckCoherence(a))

	sess, err := st.sessions.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StateSucceeded, sess.State)

	assertSiteWritten(t, st)
}

// TestE2E_ProviderDown points every text stage at a provider that always
// answers 503. Every stage falls back and the run still succeeds.
func TestE2E_ProviderDown(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	cfg := config.Default()
	cfg.Providers = []config.ProviderConfig{{
		ID:      "primary",
		Kind:    config.KindOpenAI,
		BaseURL: upstream.URL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}}
	cfg.Chains[config.DefaultChain] = []string{"primary"}

	m := metrics.New()
	adapter, err := provider.NewAdapterFromConfig(cfg.Providers, provider.WithMetrics(m))
	require.NoError(t, err)
	p := orchestrator.NewPipeline(adapter, orchestrator.OptionsFromConfig(cfg, nil, m))
	st := newStack(t, p)

	events, last := st.generate(t)
	assertProgress(t, events)
	require.Equal(t, server.EventResult, last.Event)
	assert.Positive(t, calls.Load())

	var result server.ResultEvent
	require.NoError(t, json.Unmarshal(last.Data, &result))
	assert.True(t, result.Artifact.Degraded)
	for stage, o := range result.Artifact.Outcomes {
		assert.Equal(t, "completed", o.Status, stage)
	}

	assertSiteWritten(t, st)
}
