package layout

import (
	"time"

	"tmscal/internal/model"
)

// Label is the display status shown on the calendar.
type Label string

const (
	LabelUpcoming  Label = "Upcoming"
	LabelOngoing   Label = "Ongoing"
	LabelFinished  Label = "Finished"
	LabelCancelled Label = "Cancelled"
)

// Severity selects the display color of a Label.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityMuted   Severity = "muted"
	SeverityDanger  Severity = "danger"
)

// Display is the resolved status of one event.
type Display struct {
	Label    Label    `json:"label"`
	Severity Severity `json:"severity"`
}

var displays = map[Label]Display{
	LabelUpcoming:  {LabelUpcoming, SeveritySuccess},
	LabelOngoing:   {LabelOngoing, SeverityWarning},
	LabelFinished:  {LabelFinished, SeverityMuted},
	LabelCancelled: {LabelCancelled, SeverityDanger},
}

// DisplayFor returns the Display for label.
func DisplayFor(label Label) Display {
	return displays[label]
}

// ResolveStatus maps e to its display status at now. A stored "cancelled" or
// "finished" wins outright; any other stored status is informational and the
// label comes from comparing the calendar day of now with the event's
// effective start and end.
func ResolveStatus(e model.ScheduleEvent, now time.Time) Display {
	switch e.Status {
	case model.StatusCancelled:
		return displays[LabelCancelled]
	case model.StatusFinished:
		return displays[LabelFinished]
	}

	start, end, ok := e.Bounds()
	if !ok {
		return displays[LabelUpcoming]
	}
	today := model.DayOf(now)
	switch {
	case today.After(end):
		return displays[LabelFinished]
	case today.Between(start, end):
		return displays[LabelOngoing]
	default:
		return displays[LabelUpcoming]
	}
}

// DeriveStoredStatus computes the status the back office should store for e
// on today. Cancelled schedules and schedules without dates are left alone;
// changed is false when the result equals the current status.
func DeriveStoredStatus(e model.ScheduleEvent, today model.Day) (status model.Status, changed bool) {
	if e.Status == model.StatusCancelled {
		return e.Status, false
	}
	start, end, ok := e.Bounds()
	if !ok {
		return e.Status, false
	}

	switch {
	case today.Before(start):
		status = model.StatusPlanned
	case today.After(end):
		status = model.StatusFinished
	default:
		status = model.StatusOngoing
	}
	return status, status != e.Status
}
