// Package layout turns a set of scheduled trainings into a month-grid layout:
// which events fall in the displayed month, which horizontal track each one
// occupies, what each day cell contains, and how each event is labelled.
//
// Everything here is a pure function of its inputs. Callers recompute on
// every month change or data refresh and throw the previous result away.
package layout

import "tmscal/internal/model"

// OccursOn reports whether e takes place on day.
//
// A range matches every day from its start through its end inclusive; a date
// set matches only its listed days. Events that cannot occur (empty date set,
// inverted range, unknown kind) never match.
func OccursOn(e model.ScheduleEvent, day model.Day) bool {
	switch s := e.Span.(type) {
	case model.Range:
		return s.Valid() && day.Between(s.Start, s.End)
	case model.DateSet:
		return s.Contains(day)
	default:
		return false
	}
}

// schedulable reports whether e can occur on at least one day.
func schedulable(e model.ScheduleEvent) bool {
	_, _, ok := e.Bounds()
	return ok
}
