package orchestrator

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dusk-indust/sitegen/internal/site"
)

// ErrInvalidTransition is returned for a lifecycle move the state machine
// does not allow, such as starting a stage twice or leaving a terminal status.
var ErrInvalidTransition = errors.New("invalid stage transition")

// StageState is the recorded state of one stage.
type StageState struct {
	Stage        site.StageName `json:"stage"`
	Status       Status         `json:"status"`
	Progress     int            `json:"progress"`
	UsedFallback bool           `json:"usedFallback"`
	Kind         site.ErrorKind `json:"error,omitempty"`
	Err          error          `json:"-"`
	Message      string         `json:"message,omitempty"`
	Started      time.Time      `json:"started,omitzero"`
	Finished     time.Time      `json:"finished,omitzero"`
}

// State is the mutex-guarded state of every stage in one run.
// Terminal statuses never change and progress never decreases.
type State struct {
	mu     sync.Mutex
	order  []site.StageName
	stages map[site.StageName]*StageState
}

// NewState creates a State with every stage pending.
func NewState(stages []site.StageName) *State {
	s := &State{stages: make(map[site.StageName]*StageState, len(stages))}
	for _, name := range stages {
		s.order = append(s.order, name)
		s.stages[name] = &StageState{Stage: name, Status: StatusPending}
	}
	return s
}

func (s *State) lookup(stage site.StageName) (*StageState, error) {
	st, ok := s.stages[stage]
	if !ok {
		return nil, fmt.Errorf("orchestrator: unknown stage %s", stage)
	}
	return st, nil
}

func transitionErr(st *StageState, to Status) error {
	return fmt.Errorf("orchestrator: %w: %s %s -> %s", ErrInvalidTransition, st.Stage, st.Status, to)
}

// Start moves a pending stage to running.
func (s *State) Start(stage site.StageName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.start(stage)
	return err
}

func (s *State) start(stage site.StageName) (*StageState, error) {
	st, err := s.lookup(stage)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusPending {
		return nil, transitionErr(st, StatusRunning)
	}
	st.Status = StatusRunning
	st.Started = time.Now()
	return st, nil
}

// Update records progress of a running stage. Progress is clamped to 0-99
// and never decreases; 100 is reserved for termination.
func (s *State) Update(stage site.StageName, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.update(stage, progress, message)
	return err
}

func (s *State) update(stage site.StageName, progress int, message string) (*StageState, error) {
	st, err := s.lookup(stage)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusRunning {
		return nil, transitionErr(st, StatusRunning)
	}
	st.Progress = max(st.Progress, min(max(progress, 0), 99))
	if message != "" {
		st.Message = message
	}
	return st, nil
}

// Complete marks a running stage completed at 100%.
func (s *State) Complete(stage site.StageName, usedFallback bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.complete(stage, usedFallback)
	return err
}

func (s *State) complete(stage site.StageName, usedFallback bool) (*StageState, error) {
	st, err := s.lookup(stage)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusRunning {
		return nil, transitionErr(st, StatusCompleted)
	}
	st.Status = StatusCompleted
	st.Progress = 100
	st.UsedFallback = usedFallback
	st.Finished = time.Now()
	return st, nil
}

// Fail marks a running stage failed. A failed stage is finished, so it
// counts as 100% toward the aggregate.
func (s *State) Fail(stage site.StageName, kind site.ErrorKind, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.fail(stage, kind, cause)
	return err
}

func (s *State) fail(stage site.StageName, kind site.ErrorKind, cause error) (*StageState, error) {
	st, err := s.lookup(stage)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusRunning {
		return nil, transitionErr(st, StatusFailed)
	}
	st.Status = StatusFailed
	st.Progress = 100
	st.Kind = kind
	st.Err = cause
	if cause != nil {
		st.Message = cause.Error()
	}
	st.Finished = time.Now()
	return st, nil
}

// Skip marks a pending stage skipped. Skipped stages leave the aggregate.
func (s *State) Skip(stage site.StageName, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.skip(stage, reason)
	return err
}

func (s *State) skip(stage site.StageName, reason string) (*StageState, error) {
	st, err := s.lookup(stage)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusPending {
		return nil, transitionErr(st, StatusSkipped)
	}
	st.Status = StatusSkipped
	st.Message = reason
	return st, nil
}

// Get returns a copy of one stage's state.
func (s *State) Get(stage site.StageName) (StageState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stages[stage]
	if !ok {
		return StageState{}, false
	}
	return *st, true
}

// Snapshot returns a copy of every stage in declaration order.
func (s *State) Snapshot() []StageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StageState, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.stages[name])
	}
	return out
}

// Aggregate is round(100 * sum(progress) / (100 * non-skipped stages)).
func (s *State) Aggregate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregate()
}

func (s *State) aggregate() int {
	sum, n := 0, 0
	for _, st := range s.stages {
		if st.Status == StatusSkipped {
			continue
		}
		sum += st.Progress
		n++
	}
	if n == 0 {
		return 100
	}
	return int(math.Round(100 * float64(sum) / float64(100*n)))
}
