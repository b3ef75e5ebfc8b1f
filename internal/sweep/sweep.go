// Package sweep recalculates stored schedule statuses from today's date.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tmscal/internal/layout"
	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

// Store is what the sweep needs from the schedule store.
type Store interface {
	List(ctx context.Context) ([]model.ScheduleEvent, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) error
}

// Change records one status rewrite.
type Change struct {
	ID  string       `json:"id"`
	Old model.Status `json:"old"`
	New model.Status `json:"new"`
}

// Run derives the stored status of every schedule for today and writes back
// the ones that changed. Cancelled schedules and schedules without dates are
// left alone. Failed updates are skipped and reported in the joined error.
func Run(ctx context.Context, st Store, today model.Day) ([]Change, error) {
	events, err := st.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep: list: %w", err)
	}

	var (
		changes []Change
		errs    []error
	)
	for _, e := range events {
		next, changed := layout.DeriveStoredStatus(e, today)
		if !changed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return changes, err
		}
		if err := st.UpdateStatus(ctx, e.ID, next); err != nil {
			errs = append(errs, fmt.Errorf("sweep: %s: %w", e.ID, err))
			continue
		}
		appLog.Debug("sweep: status updated", "id", e.ID, "old", e.Status, "new", next)
		changes = append(changes, Change{ID: e.ID, Old: e.Status, New: next})
	}

	appLog.Info("sweep completed", "today", today.String(), "checked", len(events), "updated", len(changes))
	return changes, errors.Join(errs...)
}

// Scheduler runs the sweep on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers a sweep job on spec (standard 5-field cron) in loc.
// onDone, if non-nil, is called after every run that changed something.
func NewScheduler(spec string, loc *time.Location, st Store, onDone func([]Change)) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		today := model.DayOf(time.Now().In(loc))
		changes, err := Run(context.Background(), st, today)
		if err != nil {
			appLog.Error("scheduled sweep failed", err)
		}
		if len(changes) > 0 && onDone != nil {
			onDone(changes)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sweep: bad cron spec %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// AddJob runs fn on spec alongside the sweep, in the same location.
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("sweep: bad cron spec %q for %s: %w", spec, name, err)
	}
	appLog.Debug("scheduled job registered", "name", name, "cron", spec)
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for a running sweep to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
