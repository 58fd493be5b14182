package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/site"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeGenerator emits events and returns a fixed outcome.
type fakeGenerator struct {
	events   []orchestrator.Event
	artifact *site.SiteArtifact
	err      error
}

func (g *fakeGenerator) Generate(_ context.Context, _ site.BusinessConfiguration, observers ...orchestrator.Observer) (*site.SiteArtifact, error) {
	for _, ev := range g.events {
		for _, o := range observers {
			o(ev)
		}
	}
	return g.artifact, g.err
}

func acme() site.BusinessConfiguration {
	return site.BusinessConfiguration{ProjectName: "Acme Law", Industry: "Legal Services"}
}

func TestRegistry_RunRecordsEventsAndArtifact(t *testing.T) {
	r := NewRegistry()
	gen := &fakeGenerator{
		events: []orchestrator.Event{
			{Stage: site.StageDesignStrategy, Status: orchestrator.StatusRunning, Aggregate: 2},
			{Stage: site.StageDesignStrategy, Status: orchestrator.StatusCompleted, Aggregate: 11},
		},
		artifact: &site.SiteArtifact{Slug: "acme-law", Degraded: true},
	}

	var seen int
	id, artifact, err := r.Run(context.Background(), gen, acme(), func(orchestrator.Event) { seen++ })
	require.NoError(t, err)
	assert.Same(t, gen.artifact, artifact)
	assert.Equal(t, 2, seen)

	s, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, s.State)
	assert.Equal(t, "Acme Law", s.Project)
	assert.Equal(t, "acme-law", s.Slug)
	assert.Equal(t, 11, s.Aggregate)
	assert.Len(t, s.Events, 2)
	assert.False(t, s.Finished.IsZero())

	list := r.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Degraded)
}

func TestRegistry_FinishWithPipelineFailure(t *testing.T) {
	r := NewRegistry()
	partial := &site.SiteArtifact{Partial: true}

	id := r.Create(acme())
	err := r.Finish(id, nil, &orchestrator.PipelineFailure{
		Kind:    site.KindCancelled,
		Message: "generation cancelled",
		Partial: partial,
	})
	require.NoError(t, err)

	s, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, s.State)
	assert.Equal(t, site.KindCancelled, s.ErrorKind)
	assert.Same(t, partial, s.Artifact)

	id = r.Create(acme())
	require.NoError(t, r.Finish(id, nil, errors.New("disk full")))
	s, _ = r.Get(id)
	assert.Equal(t, StateFailed, s.State)
	assert.Equal(t, "disk full", s.Error)
}

func TestRegistry_UnknownSession(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Finish("nope", nil, nil), ErrNotFound)
	assert.NotPanics(t, func() { r.Observer("nope")(orchestrator.Event{}) })
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	id := r.Create(acme())
	r.Observer(id)(orchestrator.Event{Stage: site.StageSEO, Aggregate: 5})

	s, _ := r.Get(id)
	s.Events[0].Stage = "tampered"
	s.State = StateFailed

	again, _ := r.Get(id)
	assert.Equal(t, site.StageSEO, again.Events[0].Stage)
	assert.Equal(t, StateRunning, again.State)
}

func TestRegistry_EventsBounded(t *testing.T) {
	r := NewRegistry()
	id := r.Create(acme())
	obs := r.Observer(id)
	for i := range maxEvents + 10 {
		obs(orchestrator.Event{Aggregate: i % 100, Message: "e"})
	}
	s, _ := r.Get(id)
	assert.Len(t, s.Events, maxEvents)
	assert.Equal(t, 99, s.Aggregate)
}

func TestRegistry_EventsAfterFinishDropped(t *testing.T) {
	r := NewRegistry()
	id := r.Create(acme())
	require.NoError(t, r.Finish(id, &site.SiteArtifact{}, nil))
	r.Observer(id)(orchestrator.Event{Aggregate: 50})

	s, _ := r.Get(id)
	assert.Empty(t, s.Events)
}

func TestRegistry_EvictTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithTTL(time.Hour), WithClock(clock.Now))

	old := r.Create(acme())
	require.NoError(t, r.Finish(old, &site.SiteArtifact{}, nil))
	running := r.Create(acme())

	clock.Advance(2 * time.Hour)
	fresh := r.Create(acme())
	require.NoError(t, r.Finish(fresh, &site.SiteArtifact{}, nil))

	assert.Equal(t, 1, r.Evict())
	_, err := r.Get(old)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(running)
	assert.NoError(t, err, "running sessions are never evicted")
	_, err = r.Get(fresh)
	assert.NoError(t, err)
}

func TestRegistry_EvictCap(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithMaxSessions(2), WithClock(clock.Now))

	var ids []string
	for range 4 {
		id := r.Create(acme())
		require.NoError(t, r.Finish(id, &site.SiteArtifact{}, nil))
		ids = append(ids, id)
		clock.Advance(time.Minute)
	}

	assert.Equal(t, 2, r.Evict())
	assert.Equal(t, 2, r.Len())
	_, err := r.Get(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(ids[3])
	assert.NoError(t, err)
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now))
	first := r.Create(acme())
	clock.Advance(time.Second)
	second := r.Create(acme())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"@every 5m", "*/10 * * * *", "@hourly"} {
		_, err := ParseSchedule(spec)
		assert.NoError(t, err, spec)
	}
	_, err := ParseSchedule("every now and then")
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestStartEviction(t *testing.T) {
	clock := &fakeClock{t: time.Now().Add(-2 * time.Hour)}
	r := NewRegistry(WithTTL(time.Hour), WithClock(clock.Now))
	id := r.Create(acme())
	require.NoError(t, r.Finish(id, &site.SiteArtifact{}, nil))
	clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.StartEviction(ctx, "@every 1s"))

	assert.Eventually(t, func() bool { return r.Len() == 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Error(t, r.StartEviction(ctx, "bogus"))
}
