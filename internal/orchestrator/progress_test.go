package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/site"
)

// collector records every event it observes. Observers run under the
// Progress lock, so no extra synchronization is needed.
type collector struct {
	events []Event
}

func (c *collector) observe(ev Event) { c.events = append(c.events, ev) }

func (c *collector) aggregates() []int {
	out := make([]int, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Aggregate
	}
	return out
}

func TestProgress_EventsInTransitionOrder(t *testing.T) {
	p := NewProgress(NewState([]site.StageName{"a", "b"}))
	c := &collector{}
	p.Subscribe(c.observe)

	require.NoError(t, p.OnStageTransition(Transition{Stage: "a", Status: StatusRunning, Progress: 10, Message: "request built"}))
	require.NoError(t, p.OnStageTransition(Transition{Stage: "a", Status: StatusCompleted, UsedFallback: true}))
	require.NoError(t, p.OnStageTransition(Transition{Stage: "b", Status: StatusSkipped, Message: "deadline exceeded"}))

	require.Len(t, c.events, 3)
	assert.Equal(t, StatusRunning, c.events[0].Status)
	assert.Equal(t, 10, c.events[0].Progress)
	assert.Equal(t, "request built", c.events[0].Message)
	assert.Equal(t, 5, c.events[0].Aggregate)

	assert.Equal(t, StatusCompleted, c.events[1].Status)
	assert.True(t, c.events[1].UsedFallback)
	assert.Equal(t, 50, c.events[1].Aggregate)

	assert.Equal(t, StatusSkipped, c.events[2].Status)
	assert.Equal(t, 100, c.events[2].Aggregate)
}

func TestProgress_AggregateNeverDecreases(t *testing.T) {
	p := NewProgress(NewState([]site.StageName{"a", "b"}))
	c := &collector{}
	p.Subscribe(c.observe)

	require.NoError(t, p.OnStageTransition(Transition{Stage: "a", Status: StatusRunning, Progress: 80}))
	require.NoError(t, p.OnStageTransition(Transition{Stage: "b", Status: StatusRunning, Progress: 10}))
	// a's completion lifts the aggregate; b's late milestone must not pull
	// the reported value back.
	require.NoError(t, p.OnStageTransition(Transition{Stage: "a", Status: StatusCompleted}))
	require.NoError(t, p.OnStageTransition(Transition{Stage: "b", Status: StatusRunning, Progress: 5}))
	require.NoError(t, p.OnStageTransition(Transition{Stage: "b", Status: StatusFailed, Kind: site.KindCancelled}))

	assert.IsNonDecreasing(t, c.aggregates())
	assert.Equal(t, 100, p.Aggregate())
}

func TestProgress_InvalidTransitionNotBroadcast(t *testing.T) {
	p := NewProgress(NewState([]site.StageName{"a"}))
	c := &collector{}
	p.Subscribe(c.observe)

	err := p.OnStageTransition(Transition{Stage: "a", Status: StatusCompleted})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, c.events)

	err = p.OnStageTransition(Transition{Stage: "a", Status: StatusPending})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProgress_Unsubscribe(t *testing.T) {
	p := NewProgress(NewState([]site.StageName{"a"}))
	first, second := &collector{}, &collector{}
	unsubscribe := p.Subscribe(first.observe)
	p.Subscribe(second.observe)

	unsubscribe()
	unsubscribe()
	require.NoError(t, p.OnStageTransition(Transition{Stage: "a", Status: StatusRunning, Progress: 20}))

	assert.Empty(t, first.events)
	assert.Len(t, second.events, 1)
}

func TestProgress_Reporter(t *testing.T) {
	p := NewProgress(NewState([]site.StageName{"a"}))
	c := &collector{}
	p.Subscribe(c.observe)

	r := p.Reporter("a")
	r.Report(10, "request built")
	r.Report(80, "validation passed")

	st, _ := p.State().Get("a")
	assert.Equal(t, StatusRunning, st.Status)
	assert.Equal(t, 80, st.Progress)
	assert.Len(t, c.events, 2)
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Stage: "copywriter", Status: StatusRunning, Aggregate: 42, Message: "provider call started: openai"}, "provider call started: openai"},
		{Event{Stage: "copywriter", Status: StatusCompleted, Aggregate: 60, UsedFallback: true}, "(fallback)"},
		{Event{Stage: "copywriter", Status: StatusFailed, Aggregate: 60, Error: site.KindCancelled}, "CANCELLED"},
		{Event{Stage: "copywriter", Status: StatusSkipped, Aggregate: 60}, "skipped"},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Status), func(t *testing.T) {
			line := FormatProgress(tt.ev)
			assert.Contains(t, line, "copywriter")
			assert.Contains(t, line, tt.want)
			assert.True(t, strings.Contains(line, "%]"))
		})
	}
}
