package layout

import (
	"slices"

	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

// Slot is one lane of a day cell. Event is nil for a placeholder that only
// reserves vertical space so bars line up across the week row.
type Slot struct {
	Track   int
	Event   *model.ScheduleEvent
	IsStart bool
	IsEnd   bool
}

// Empty reports whether the slot is a placeholder.
func (s Slot) Empty() bool { return s.Event == nil }

// BuildDayCell lays out day: one slot per lane from 0 up to the highest lane
// used by an event occurring that day, with placeholders for unused lanes.
//
// Membership is decided by OccursOn, not by overlap, and lanes come from
// tracks as computed for the whole month. Events without a lane are left out.
func BuildDayCell(day model.Day, monthEvents []model.ScheduleEvent, tracks Tracks) []Slot {
	type placed struct {
		event *model.ScheduleEvent
		track int
	}

	var dayEvents []placed
	for i := range monthEvents {
		e := &monthEvents[i]
		if !OccursOn(*e, day) {
			continue
		}
		track, ok := tracks.Track(e.ID)
		if !ok {
			continue
		}
		dayEvents = append(dayEvents, placed{event: e, track: track})
	}
	if len(dayEvents) == 0 {
		return nil
	}

	slices.SortStableFunc(dayEvents, func(a, b placed) int { return a.track - b.track })
	maxTrack := dayEvents[len(dayEvents)-1].track

	slots := make([]Slot, maxTrack+1)
	for i := range slots {
		slots[i].Track = i
	}
	for _, p := range dayEvents {
		if held := slots[p.track]; !held.Empty() {
			// Two events on one lane on one day means the assignment came
			// from a different event set or IDs repeat; keep the first.
			appLog.Debug("layout: dropping event from occupied lane",
				"day", day.String(), "track", p.track, "id", p.event.ID, "kept", held.Event.ID)
			continue
		}
		isStart, isEnd := edges(*p.event, day)
		slots[p.track] = Slot{Track: p.track, Event: p.event, IsStart: isStart, IsEnd: isEnd}
	}
	return slots
}

// edges computes the rendering flags for e on day. Every staggered date is
// drawn as its own labelled piece.
func edges(e model.ScheduleEvent, day model.Day) (isStart, isEnd bool) {
	switch s := e.Span.(type) {
	case model.Range:
		return day == s.Start, day == s.End
	case model.DateSet:
		return true, true
	default:
		return false, false
	}
}
