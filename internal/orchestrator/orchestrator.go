// Package orchestrator runs the generation stages as a dependency graph:
// stages are grouped into waves, each wave runs concurrently, and progress
// is aggregated and fanned out to subscribers as stages move through their
// lifecycle.
package orchestrator

import (
	"context"
	"time"

	"github.com/dusk-indust/sitegen/internal/site"
)

// Status is the lifecycle state of one stage within a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Event is emitted to subscribers on every stage transition.
type Event struct {
	Stage        site.StageName `json:"stage"`
	Status       Status         `json:"status"`
	Progress     int            `json:"progress"`
	Aggregate    int            `json:"aggregate"`
	Message      string         `json:"message,omitempty"`
	UsedFallback bool           `json:"usedFallback,omitempty"`
	Error        site.ErrorKind `json:"error,omitempty"`
	Time         time.Time      `json:"time"`
}

// Observer receives progress events. Observers run synchronously in
// transition order and must not call back into the Progress that invokes
// them.
type Observer func(Event)

// Generator produces a site artifact from a business configuration.
type Generator interface {
	Generate(ctx context.Context, cfg site.BusinessConfiguration, observers ...Observer) (*site.SiteArtifact, error)
}
