package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/stages"
)

// Transition is one requested stage lifecycle move.
type Transition struct {
	Stage        site.StageName
	Status       Status
	Progress     int
	Message      string
	UsedFallback bool
	Kind         site.ErrorKind
	Err          error
}

// Progress applies transitions to a State and fans the resulting events out
// to subscribers. Transitions are serialized: subscribers see events in the
// order the transitions were applied, and the aggregate in those events
// never decreases.
type Progress struct {
	mu     sync.Mutex
	state  *State
	subs   []subscriber
	nextID int
	last   int
	now    func() time.Time
}

type subscriber struct {
	id int
	fn Observer
}

// NewProgress creates a Progress over state.
func NewProgress(state *State) *Progress {
	return &Progress{state: state, now: time.Now}
}

// State returns the underlying state.
func (p *Progress) State() *State { return p.state }

// Subscribe registers fn and returns a function that removes it.
func (p *Progress) Subscribe(fn Observer) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs = append(p.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, s := range p.subs {
				if s.id == id {
					p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// OnStageTransition applies t and notifies subscribers. A running
// transition on a pending stage starts it; on a running stage it records
// progress.
func (p *Progress) OnStageTransition(t Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	s.mu.Lock()
	var (
		st  *StageState
		err error
	)
	switch t.Status {
	case StatusRunning:
		st, err = s.lookup(t.Stage)
		if err == nil {
			if st.Status == StatusPending {
				st, err = s.start(t.Stage)
			}
			if err == nil {
				st, err = s.update(t.Stage, t.Progress, t.Message)
			}
		}
	case StatusCompleted:
		st, err = s.complete(t.Stage, t.UsedFallback)
		if err == nil && t.Message != "" {
			st.Message = t.Message
		}
	case StatusFailed:
		st, err = s.fail(t.Stage, t.Kind, t.Err)
	case StatusSkipped:
		st, err = s.skip(t.Stage, t.Message)
	default:
		err = fmt.Errorf("orchestrator: %w: unsupported status %q", ErrInvalidTransition, t.Status)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ev := Event{
		Stage:        st.Stage,
		Status:       st.Status,
		Progress:     st.Progress,
		Message:      st.Message,
		UsedFallback: st.UsedFallback,
		Error:        st.Kind,
		Time:         p.now(),
	}
	agg := s.aggregate()
	s.mu.Unlock()

	p.last = max(p.last, agg)
	ev.Aggregate = p.last
	for _, sub := range p.subs {
		sub.fn(ev)
	}
	return nil
}

// Aggregate returns the last reported aggregate progress.
func (p *Progress) Aggregate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Reporter returns a stages.Reporter that records milestones for stage.
func (p *Progress) Reporter(stage site.StageName) stages.Reporter {
	return stages.ReporterFunc(func(progress int, message string) {
		_ = p.OnStageTransition(Transition{Stage: stage, Status: StatusRunning, Progress: progress, Message: message})
	})
}

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#38bdf8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	stageStyle   = lipgloss.NewStyle().Bold(true)
)

// FormatProgress renders an event as one terminal status line.
func FormatProgress(ev Event) string {
	pct := dimStyle.Render(fmt.Sprintf("[%3d%%]", ev.Aggregate))
	name := stageStyle.Render(string(ev.Stage))
	switch ev.Status {
	case StatusPending:
		return fmt.Sprintf("%s %s %s", pct, dimStyle.Render("○"), name)
	case StatusRunning:
		return fmt.Sprintf("%s %s %s %s", pct, runningStyle.Render("●"), name, dimStyle.Render(ev.Message))
	case StatusCompleted:
		if ev.UsedFallback {
			return fmt.Sprintf("%s %s %s %s", pct, warningStyle.Render("✓"), name, warningStyle.Render("(fallback)"))
		}
		return fmt.Sprintf("%s %s %s", pct, successStyle.Render("✓"), name)
	case StatusFailed:
		return fmt.Sprintf("%s %s %s %s", pct, errorStyle.Render("✗"), name, errorStyle.Render(string(ev.Error)+": "+ev.Message))
	case StatusSkipped:
		return fmt.Sprintf("%s %s %s %s", pct, dimStyle.Render("-"), name, dimStyle.Render("skipped"))
	default:
		return fmt.Sprintf("%s ? %s", pct, name)
	}
}
