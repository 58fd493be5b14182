package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/stages"
)

// TaskResult is the type-erased outcome of one stage execution.
type TaskResult struct {
	OK           bool
	UsedFallback bool
	Kind         site.ErrorKind
	Err          error
}

// ResultOf erases the value of a stage result.
func ResultOf[T any](r site.Result[T]) TaskResult {
	return TaskResult{OK: r.OK(), UsedFallback: r.UsedFallback, Kind: r.Kind, Err: r.Error()}
}

// Task executes one stage. It stores its typed output itself and reports
// milestones through r.
type Task func(ctx context.Context, r stages.Reporter) TaskResult

// Summary describes how a scheduler run ended.
type Summary struct {
	Waves            int              `json:"waves"`
	Skipped          []site.StageName `json:"skipped,omitempty"`
	DeadlineExceeded bool             `json:"deadlineExceeded,omitempty"`
	Cancelled        bool             `json:"cancelled,omitempty"`
}

// Scheduler runs a Graph wave by wave. Stages within a wave run
// concurrently and the scheduler joins them before starting the next wave.
// A stage that ends with a fallback value counts as completed; only a
// ConfigurationInvalid failure aborts the run immediately.
type Scheduler struct {
	graph    *Graph
	progress *Progress
	deadline time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. A zero deadline disables the aggregate
// deadline.
func NewScheduler(graph *Graph, progress *Progress, deadline time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{graph: graph, progress: progress, deadline: deadline, logger: logger}
}

// Run executes tasks. Stages without a task, or whose dependencies did not
// complete, are skipped. When ctx is cancelled or the deadline passes, the
// remaining waves are skipped. The returned error is a *site.Error of kind
// Cancelled or ConfigurationInvalid; a passed deadline is not an error.
func (s *Scheduler) Run(ctx context.Context, tasks map[site.StageName]Task) (Summary, error) {
	var sum Summary
	start := time.Now()
	waves := s.graph.Waves()

	for wi, wave := range waves {
		if err := ctx.Err(); err != nil {
			sum.Cancelled = true
			s.skipFrom(&sum, waves[wi:], "cancelled")
			return sum, site.NewError(site.KindCancelled, "scheduler", err)
		}
		if s.deadline > 0 && time.Since(start) >= s.deadline {
			sum.DeadlineExceeded = true
			s.logger.Warn("pipeline deadline exceeded", "deadline", s.deadline, "wave", wi+1)
			s.skipFrom(&sum, waves[wi:], "deadline exceeded")
			return sum, nil
		}

		sum.Waves++
		s.logger.Debug("wave started", "wave", wi+1, "stages", wave)
		g, gctx := errgroup.WithContext(ctx)
		for _, stage := range wave {
			task, ok := tasks[stage]
			if !ok {
				s.skip(&sum, stage, "no task")
				continue
			}
			if missing := s.incompleteDeps(stage); len(missing) > 0 {
				s.skip(&sum, stage, fmt.Sprintf("dependencies not completed: %v", missing))
				continue
			}
			g.Go(func() error { return s.runStage(gctx, stage, task) })
		}
		if err := g.Wait(); err != nil {
			s.skipFrom(&sum, waves[wi+1:], "aborted")
			return sum, err
		}
	}

	if err := ctx.Err(); err != nil {
		sum.Cancelled = true
		return sum, site.NewError(site.KindCancelled, "scheduler", err)
	}
	return sum, nil
}

func (s *Scheduler) runStage(ctx context.Context, stage site.StageName, task Task) error {
	if err := s.progress.OnStageTransition(Transition{Stage: stage, Status: StatusRunning, Message: "started"}); err != nil {
		return err
	}

	res := s.call(ctx, stage, task)
	if res.OK {
		_ = s.progress.OnStageTransition(Transition{Stage: stage, Status: StatusCompleted, UsedFallback: res.UsedFallback})
		return nil
	}

	_ = s.progress.OnStageTransition(Transition{Stage: stage, Status: StatusFailed, Kind: res.Kind, Err: res.Err})
	if res.Kind == site.KindConfigurationInvalid {
		return site.NewError(site.KindConfigurationInvalid, string(stage), res.Err)
	}
	return nil
}

// call runs task, turning a panic into a failed result.
func (s *Scheduler) call(ctx context.Context, stage site.StageName, task Task) (res TaskResult) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("stage task panicked", "stage", stage, "panic", p)
			res = TaskResult{Kind: site.KindProviderUnavailable, Err: fmt.Errorf("stage %s panicked: %v", stage, p)}
		}
	}()
	return task(ctx, s.progress.Reporter(stage))
}

func (s *Scheduler) incompleteDeps(stage site.StageName) []site.StageName {
	var missing []site.StageName
	for _, d := range s.graph.Deps(stage) {
		if st, ok := s.progress.State().Get(d); !ok || st.Status != StatusCompleted {
			missing = append(missing, d)
		}
	}
	return missing
}

func (s *Scheduler) skip(sum *Summary, stage site.StageName, reason string) {
	if err := s.progress.OnStageTransition(Transition{Stage: stage, Status: StatusSkipped, Message: reason}); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			s.logger.Warn("skip failed", "stage", stage, "error", err)
		}
		return
	}
	sum.Skipped = append(sum.Skipped, stage)
}

func (s *Scheduler) skipFrom(sum *Summary, waves [][]site.StageName, reason string) {
	for _, wave := range waves {
		for _, stage := range wave {
			s.skip(sum, stage, reason)
		}
	}
}
