package layout

import (
	"time"

	"tmscal/internal/model"
)

// MonthLayout is everything a renderer needs to draw one month.
type MonthLayout struct {
	Year  int
	Month time.Month

	// Events are the month-relevant events in track-assignment order.
	Events []model.ScheduleEvent
	Tracks Tracks
	// Days holds a cell for every day of the month; days without events map
	// to a nil slice.
	Days     map[model.Day][]Slot
	Statuses map[string]Display
	MaxTrack int
}

// Compute filters events to the month, assigns tracks, builds every day cell
// and resolves every status. now is normally time.Now in the display zone;
// only its calendar date matters.
func Compute(events []model.ScheduleEvent, year int, month time.Month, now time.Time) MonthLayout {
	monthEvents := EventsForMonth(events, year, month)
	tracks := AssignTracks(monthEvents)

	first, last := model.MonthBounds(year, month)
	days := make(map[model.Day][]Slot, last.Day)
	for d := first; !d.After(last); d = d.AddDays(1) {
		days[d] = BuildDayCell(d, monthEvents, tracks)
	}

	statuses := make(map[string]Display, len(monthEvents))
	for _, e := range monthEvents {
		statuses[e.ID] = ResolveStatus(e, now)
	}

	return MonthLayout{
		Year:     year,
		Month:    month,
		Events:   monthEvents,
		Tracks:   tracks,
		Days:     days,
		Statuses: statuses,
		MaxTrack: tracks.Max(),
	}
}

// Weeks returns the month's days arranged in rows of seven, padded with zero
// Days before the first and after the last day. weekStart is the weekday of
// the leftmost column.
func (m MonthLayout) Weeks(weekStart time.Weekday) [][7]model.Day {
	first, last := model.MonthBounds(m.Year, m.Month)
	lead := (int(first.Time(nil).Weekday()) - int(weekStart) + 7) % 7

	var weeks [][7]model.Day
	var row [7]model.Day
	col := lead
	for d := first; !d.After(last); d = d.AddDays(1) {
		row[col] = d
		col++
		if col == 7 {
			weeks = append(weeks, row)
			row = [7]model.Day{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, row)
	}
	return weeks
}
