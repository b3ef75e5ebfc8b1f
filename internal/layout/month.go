package layout

import (
	"slices"
	"time"

	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

// EventsForMonth returns the events whose occurrence touches any day of the
// given month, sorted by effective start day. Events starting on the same day
// keep their input order, which decides who gets the lower track.
//
// A range is kept when it intersects the month at all, so courses that began
// in the previous month or run into the next one are included. A date set is
// kept when at least one of its dates falls inside the month.
func EventsForMonth(events []model.ScheduleEvent, year int, month time.Month) []model.ScheduleEvent {
	first, last := model.MonthBounds(year, month)

	out := make([]model.ScheduleEvent, 0, len(events))
	for _, e := range events {
		if !schedulable(e) {
			appLog.Debug("layout: dropping unschedulable event", "id", e.ID, "kind", e.Kind())
			continue
		}
		if inWindow(e, first, last) {
			out = append(out, e)
		}
	}

	slices.SortStableFunc(out, func(a, b model.ScheduleEvent) int {
		return a.Start().Compare(b.Start())
	})
	return out
}

func inWindow(e model.ScheduleEvent, first, last model.Day) bool {
	switch s := e.Span.(type) {
	case model.Range:
		return rangesOverlap(s, model.Range{Start: first, End: last})
	case model.DateSet:
		for _, d := range s.Dates {
			if d.Between(first, last) {
				return true
			}
		}
	}
	return false
}
