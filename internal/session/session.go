// Package session keeps a bounded registry of generation runs so callers
// can look up the progress and result of a run after it started.
package session

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/site"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session not found")

// State is the lifecycle state of a session.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Finished reports whether the run has ended.
func (s State) Finished() bool { return s != StateRunning }

// maxEvents bounds the events retained per session.
const maxEvents = 512

// Session is the record of one generation run.
type Session struct {
	ID        string               `json:"id"`
	Project   string               `json:"project"`
	Slug      string               `json:"slug"`
	State     State                `json:"state"`
	Aggregate int                  `json:"aggregate"`
	Created   time.Time            `json:"created"`
	Finished  time.Time            `json:"finished,omitzero"`
	Events    []orchestrator.Event `json:"events,omitempty"`
	Artifact  *site.SiteArtifact   `json:"artifact,omitempty"`
	ErrorKind site.ErrorKind       `json:"errorKind,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Summary is the list view of a session.
type Summary struct {
	ID        string         `json:"id"`
	Project   string         `json:"project"`
	State     State          `json:"state"`
	Aggregate int            `json:"aggregate"`
	Degraded  bool           `json:"degraded"`
	Partial   bool           `json:"partial"`
	ErrorKind site.ErrorKind `json:"errorKind,omitempty"`
	Created   time.Time      `json:"created"`
}

func (s *Session) summary() Summary {
	out := Summary{
		ID:        s.ID,
		Project:   s.Project,
		State:     s.State,
		Aggregate: s.Aggregate,
		ErrorKind: s.ErrorKind,
		Created:   s.Created,
	}
	if s.Artifact != nil {
		out.Degraded = s.Artifact.Degraded
		out.Partial = s.Artifact.Partial
	}
	return out
}

func (s *Session) clone() Session {
	out := *s
	out.Events = slices.Clone(s.Events)
	return out
}

// Registry is a concurrency-safe set of sessions. Finished sessions older
// than the TTL, and the oldest finished sessions beyond the cap, are
// removed by Evict.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl    time.Duration
	max    int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long finished sessions are kept.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) { r.ttl = d }
}

// WithMaxSessions caps the number of retained sessions.
func WithMaxSessions(n int) Option {
	return func(r *Registry) { r.max = n }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty Registry. Zero TTL or cap disables that bound.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
		logger:   logging.Discard(),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = logging.Component(r.logger, "sessions")
	return r
}

// Create registers a running session for cfg and returns its ID.
func (r *Registry) Create(cfg site.BusinessConfiguration) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Session{
		ID:      id,
		Project: cfg.ProjectName,
		Slug:    cfg.Slug(),
		State:   StateRunning,
		Created: r.now(),
	}
	return id
}

// Observer returns an orchestrator observer recording events into the
// session. Events for unknown or finished sessions are dropped.
func (r *Registry) Observer(id string) orchestrator.Observer {
	return func(ev orchestrator.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		s, ok := r.sessions[id]
		if !ok || s.State.Finished() {
			return
		}
		if len(s.Events) >= maxEvents {
			s.Events = slices.Delete(s.Events, 0, 1)
		}
		s.Events = append(s.Events, ev)
		s.Aggregate = max(s.Aggregate, ev.Aggregate)
	}
}

// Finish records the outcome of a run. A *orchestrator.PipelineFailure
// keeps its partial artifact.
func (r *Registry) Finish(id string, artifact *site.SiteArtifact, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Finished = r.now()
	s.Artifact = artifact

	var failure *orchestrator.PipelineFailure
	switch {
	case err == nil:
		s.State = StateSucceeded
	case errors.As(err, &failure):
		s.ErrorKind = failure.Kind
		s.Error = failure.Error()
		s.Artifact = failure.Partial
		s.State = StateFailed
		if failure.Kind == site.KindCancelled {
			s.State = StateCancelled
		}
	default:
		s.ErrorKind = site.KindOf(err)
		s.Error = err.Error()
		s.State = StateFailed
	}
	return nil
}

// Run creates a session, runs g with the session recorder and the given
// observers, and records the outcome.
func (r *Registry) Run(ctx context.Context, g orchestrator.Generator, cfg site.BusinessConfiguration, observers ...orchestrator.Observer) (string, *site.SiteArtifact, error) {
	id := r.Create(cfg)
	artifact, err := g.Generate(ctx, cfg, append([]orchestrator.Observer{r.Observer(id)}, observers...)...)
	if ferr := r.Finish(id, artifact, err); ferr != nil {
		r.logger.Warn("session vanished before finish", "session", id)
	}
	return id, artifact, err
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.clone(), nil
}

// List returns session summaries, newest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.summary())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of retained sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict removes finished sessions older than the TTL, then the oldest
// finished sessions while the registry exceeds its cap. Running sessions
// are never evicted. It returns the number removed.
func (r *Registry) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	var finished []*Session
	for id, s := range r.sessions {
		if !s.State.Finished() {
			continue
		}
		if r.ttl > 0 && now.Sub(s.Finished) > r.ttl {
			delete(r.sessions, id)
			removed++
			continue
		}
		finished = append(finished, s)
	}

	if r.max > 0 && len(r.sessions) > r.max {
		slices.SortFunc(finished, func(a, b *Session) int { return a.Finished.Compare(b.Finished) })
		for _, s := range finished {
			if len(r.sessions) <= r.max {
				break
			}
			delete(r.sessions, s.ID)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Info("sessions evicted", "removed", removed, "remaining", len(r.sessions))
	}
	return removed
}
