package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/export"
	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/session"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/sitegraph"
)

// fakeGenerator delegates to fn.
type fakeGenerator struct {
	fn func(ctx context.Context, cfg site.BusinessConfiguration, emit func(orchestrator.Event)) (*site.SiteArtifact, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, cfg site.BusinessConfiguration, observers ...orchestrator.Observer) (*site.SiteArtifact, error) {
	emit := func(ev orchestrator.Event) {
		for _, o := range observers {
			o(ev)
		}
	}
	return g.fn(ctx, cfg, emit)
}

func acmeArtifact() *site.SiteArtifact {
	return &site.SiteArtifact{
		Slug:        "acme-law",
		ProjectName: "Acme Law",
		Layout: &site.Layout{Pages: []site.Page{{Slug: "home", Title: "Home", Sections: []site.LayoutSection{
			{Type: "hero", Variant: "centered", Columns: 1},
			{Type: "contact", Variant: "form", Columns: 1},
		}}}},
		Images: []site.Result[site.GeneratedImage]{
			site.Success(site.GeneratedImage{Spec: site.ImageSpec{ID: "hero-1", Placement: "hero"}, URL: "https://img.example/h.png"}, false),
		},
	}
}

func succeeding() *fakeGenerator {
	return &fakeGenerator{fn: func(_ context.Context, _ site.BusinessConfiguration, emit func(orchestrator.Event)) (*site.SiteArtifact, error) {
		emit(orchestrator.Event{Stage: site.StageDesignStrategy, Status: orchestrator.StatusRunning, Aggregate: 1})
		emit(orchestrator.Event{Stage: site.StageDesignStrategy, Status: orchestrator.StatusCompleted, Aggregate: 11})
		emit(orchestrator.Event{Stage: site.StageCodeAssembler, Status: orchestrator.StatusCompleted, Aggregate: 100})
		return acmeArtifact(), nil
	}}
}

type fixture struct {
	srv      *httptest.Server
	sessions *session.Registry
	index    *sitegraph.MemStore
	exporter *export.Writer
}

func newFixture(t *testing.T, gen orchestrator.Generator) *fixture {
	t.Helper()
	f := &fixture{
		sessions: session.NewRegistry(),
		index:    sitegraph.NewMemStore(),
		exporter: export.NewWriter(memfs.New()),
	}
	s := New(Options{
		Generator: gen,
		Sessions:  f.sessions,
		Index:     f.index,
		Exporter:  f.exporter,
		Metrics:   metrics.New(),
		Mode:      "offline",
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) generate(t *testing.T, body string) []Frame {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/generate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	defer resp.Body.Close()
	return collect(t, resp.Body)
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

const acmeBody = `{"projectName":"Acme Law","industry":"Legal Services","services":["Contract Law"]}`

func TestGenerate_StreamsSessionProgressResult(t *testing.T) {
	f := newFixture(t, succeeding())
	frames := f.generate(t, acmeBody)

	require.Len(t, frames, 5)
	assert.Equal(t, EventSession, frames[0].Event)
	for _, fr := range frames[1:4] {
		assert.Equal(t, EventProgress, fr.Event)
	}
	assert.Equal(t, EventResult, frames[4].Event)

	var opened SessionEvent
	require.NoError(t, json.Unmarshal(frames[0].Data, &opened))
	assert.NotEmpty(t, opened.SessionID)
	assert.Equal(t, "acme-law", opened.Slug)

	var last orchestrator.Event
	require.NoError(t, json.Unmarshal(frames[3].Data, &last))
	assert.Equal(t, 100, last.Aggregate)

	var result ResultEvent
	require.NoError(t, json.Unmarshal(frames[4].Data, &result))
	assert.Equal(t, opened.SessionID, result.SessionID)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, "acme-law", result.Artifact.Slug)

	sess, err := f.sessions.Get(opened.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StateSucceeded, sess.State)
	assert.Equal(t, 100, sess.Aggregate)
}

func TestGenerate_IndexesAndExports(t *testing.T) {
	f := newFixture(t, succeeding())
	f.generate(t, acmeBody)

	sections, err := f.index.Sections(context.Background(), "acme-law")
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	m, err := f.exporter.ReadManifest("acme-law")
	require.NoError(t, err)
	assert.Equal(t, "Acme Law", m.Name)
}

func TestGenerate_InvalidConfigurationIs400(t *testing.T) {
	called := false
	f := newFixture(t, &fakeGenerator{fn: func(context.Context, site.BusinessConfiguration, func(orchestrator.Event)) (*site.SiteArtifact, error) {
		called = true
		return nil, nil
	}})

	for _, body := range []string{`{"industry":"Legal"}`, `{not json`} {
		resp, err := http.Post(f.srv.URL+"/api/generate", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		var eb ErrorBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&eb))
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, site.KindConfigurationInvalid, eb.Kind, body)
	}
	assert.False(t, called)
	assert.Zero(t, f.sessions.Len())
}

func TestGenerate_FailureEndsStreamWithError(t *testing.T) {
	partial := acmeArtifact()
	partial.Partial = true
	f := newFixture(t, &fakeGenerator{fn: func(context.Context, site.BusinessConfiguration, func(orchestrator.Event)) (*site.SiteArtifact, error) {
		return nil, &orchestrator.PipelineFailure{
			Kind:    site.KindCancelled,
			Message: "generation cancelled",
			Partial: partial,
		}
	}})

	frames := f.generate(t, acmeBody)
	require.Len(t, frames, 2)
	assert.Equal(t, EventError, frames[1].Event)

	var ev ErrorEvent
	require.NoError(t, json.Unmarshal(frames[1].Data, &ev))
	require.NotNil(t, ev.Failure)
	assert.Equal(t, site.KindCancelled, ev.Failure.Kind)
	require.NotNil(t, ev.Failure.Partial)
	assert.True(t, ev.Failure.Partial.Partial)

	sess, err := f.sessions.Get(ev.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StateCancelled, sess.State)

	_, err = f.exporter.ReadManifest("acme-law")
	assert.Error(t, err, "failed runs are not exported")
}

func TestGenerate_PlainErrorIsWrapped(t *testing.T) {
	f := newFixture(t, &fakeGenerator{fn: func(context.Context, site.BusinessConfiguration, func(orchestrator.Event)) (*site.SiteArtifact, error) {
		return nil, site.NewError(site.KindProviderUnavailable, "generate", nil)
	}})

	frames := f.generate(t, acmeBody)
	var ev ErrorEvent
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &ev))
	assert.Equal(t, site.KindProviderUnavailable, ev.Failure.Kind)
}

func TestGenerate_ClientDisconnectCancelsRun(t *testing.T) {
	cancelled := make(chan struct{})
	f := newFixture(t, &fakeGenerator{fn: func(ctx context.Context, _ site.BusinessConfiguration, _ func(orchestrator.Event)) (*site.SiteArtifact, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, site.NewError(site.KindCancelled, "generate", ctx.Err())
	}})

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.srv.URL+"/api/generate", strings.NewReader(acmeBody))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()
	for frame, err := range Events(resp.Body) {
		require.NoError(t, err)
		assert.Equal(t, EventSession, frame.Event)
		break
	}
	cancel()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("generator was not cancelled")
	}
}

func TestSessionsEndpoints(t *testing.T) {
	f := newFixture(t, succeeding())
	frames := f.generate(t, acmeBody)
	var opened SessionEvent
	require.NoError(t, json.Unmarshal(frames[0].Data, &opened))

	var list struct {
		Sessions []session.Summary `json:"sessions"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/sessions", &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, opened.SessionID, list.Sessions[0].ID)

	var sess session.Session
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/sessions/"+opened.SessionID, &sess))
	assert.Len(t, sess.Events, 3)
	require.NotNil(t, sess.Artifact)

	assert.Equal(t, http.StatusNotFound, getJSON(t, f.srv.URL+"/api/sessions/nope", nil))
}

func TestSitesEndpoints(t *testing.T) {
	f := newFixture(t, succeeding())
	f.generate(t, acmeBody)

	var sites struct {
		Sites []sitegraph.SiteNode `json:"sites"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/sites", &sites))
	require.Len(t, sites.Sites, 1)
	assert.Equal(t, "acme-law", sites.Sites[0].Slug)

	var images struct {
		Images []sitegraph.ImageNode `json:"images"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/sites/acme-law/images?section=hero", &images))
	assert.Len(t, images.Images, 1)
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/sites/acme-law/images?section=contact", &images))
	assert.Empty(t, images.Images)

	assert.Equal(t, http.StatusNotFound, getJSON(t, f.srv.URL+"/api/sites/unknown/sections", nil))
}

func TestSitesEndpoints_IndexDisabled(t *testing.T) {
	s := New(Options{Generator: succeeding(), Sessions: session.NewRegistry()})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sites", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, succeeding())

	var health map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "offline", health["mode"])

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s := New(Options{Generator: succeeding(), Sessions: session.NewRegistry(), ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
