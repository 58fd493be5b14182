package session

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when the eviction schedule cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid eviction schedule")

// ParseSchedule parses a standard five-field cron expression or a
// descriptor such as "@every 5m".
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, err)
	}
	return schedule, nil
}

// StartEviction runs Evict on the given schedule until ctx is done.
// It returns immediately.
func (r *Registry) StartEviction(ctx context.Context, spec string) error {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return err
	}
	r.logger.Info("session eviction scheduled", "schedule", spec, "next_run", schedule.Next(r.now()))
	go r.evictLoop(ctx, schedule)
	return nil
}

func (r *Registry) evictLoop(ctx context.Context, schedule cron.Schedule) {
	for {
		wait := time.Until(schedule.Next(time.Now()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Debug("session eviction stopped")
			return
		case <-timer.C:
			r.Evict()
		}
	}
}
