package model

import (
	"slices"
)

// Status is the stored, authoritative status of a schedule as kept by the
// back office. Values outside the known set are carried verbatim.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusFinished  Status = "finished"
	StatusOngoing   Status = "ongoing"
)

// Known reports whether s is one of the recognised statuses.
func (s Status) Known() bool {
	switch s {
	case StatusPlanned, StatusConfirmed, StatusCancelled, StatusFinished, StatusOngoing:
		return true
	}
	return false
}

// Kind names the temporal representation of a schedule.
type Kind string

const (
	KindRegular   Kind = "regular"
	KindStaggered Kind = "staggered"
	KindUnknown   Kind = "unknown"
)

// Span is the occurrence of a schedule: either a Range or a DateSet.
// The unexported method closes the set of implementations.
type Span interface {
	Kind() Kind
	span()
}

// Range is a contiguous, inclusive run of days.
type Range struct {
	Start Day
	End   Day
}

func (Range) Kind() Kind { return KindRegular }
func (Range) span()      {}

// Valid reports whether the range is non-empty.
func (r Range) Valid() bool { return !r.Start.After(r.End) }

// DateSet is a finite set of independent occurrence days, kept sorted and
// free of duplicates by NewDateSet.
type DateSet struct {
	Dates []Day
}

func (DateSet) Kind() Kind { return KindStaggered }
func (DateSet) span()      {}

// NewDateSet sorts and de-duplicates days.
func NewDateSet(days ...Day) DateSet {
	out := slices.Clone(days)
	slices.SortFunc(out, Day.Compare)
	out = slices.Compact(out)
	return DateSet{Dates: out}
}

// Contains reports whether d is one of the set's dates.
func (s DateSet) Contains(d Day) bool {
	for _, x := range s.Dates {
		if x == d {
			return true
		}
	}
	return false
}

// ScheduleEvent is one scheduled training as seen by the calendar.
type ScheduleEvent struct {
	ID     string
	Course string
	Branch string
	Status Status
	// Span is nil when the source carried an unrecognised schedule type.
	Span Span
	// Notes is optional markdown shown on the event detail.
	Notes string
}

// Kind reports the temporal kind, KindUnknown for a nil span.
func (e ScheduleEvent) Kind() Kind {
	if e.Span == nil {
		return KindUnknown
	}
	return e.Span.Kind()
}

// Bounds returns the effective first and last day of the event. For a date
// set these are its min and max. ok is false when the event cannot occur on
// any day: nil span, empty date set, or a range ending before it starts.
func (e ScheduleEvent) Bounds() (start, end Day, ok bool) {
	switch s := e.Span.(type) {
	case Range:
		if !s.Valid() {
			return Day{}, Day{}, false
		}
		return s.Start, s.End, true
	case DateSet:
		if len(s.Dates) == 0 {
			return Day{}, Day{}, false
		}
		lo, hi := s.Dates[0], s.Dates[0]
		for _, d := range s.Dates[1:] {
			if d.Before(lo) {
				lo = d
			}
			if d.After(hi) {
				hi = d
			}
		}
		return lo, hi, true
	default:
		return Day{}, Day{}, false
	}
}

// Start is the effective start day, zero if the event has no bounds.
func (e ScheduleEvent) Start() Day {
	s, _, _ := e.Bounds()
	return s
}

// End is the effective end day, zero if the event has no bounds.
func (e ScheduleEvent) End() Day {
	_, end, _ := e.Bounds()
	return end
}

// Regular builds a range-based event.
func Regular(id, course, branch string, status Status, start, end Day) ScheduleEvent {
	return ScheduleEvent{ID: id, Course: course, Branch: branch, Status: status, Span: Range{Start: start, End: end}}
}

// Staggered builds a date-set event.
func Staggered(id, course, branch string, status Status, dates ...Day) ScheduleEvent {
	return ScheduleEvent{ID: id, Course: course, Branch: branch, Status: status, Span: NewDateSet(dates...)}
}
