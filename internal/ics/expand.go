package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

const (
	defaultMaxDatesPerEvent = 5000
	defaultHorizonDays      = 366
)

// ExpandConfig controls how feed events are turned into calendar days.
type ExpandConfig struct {
	// Location decides the calendar day of floating and UTC times.
	// If nil, time.Local is used.
	Location *time.Location

	// HorizonDays bounds RRULE expansion, counted from the event's DTSTART.
	// Rules with COUNT or UNTIL stop earlier on their own.
	HorizonDays int

	// MaxDates is a safety cap on occurrences per event. If zero,
	// defaultMaxDatesPerEvent is used.
	MaxDates int
}

func (c ExpandConfig) withDefaults() ExpandConfig {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.MaxDates <= 0 {
		c.MaxDates = defaultMaxDatesPerEvent
	}
	return c
}

// toSchedule turns a parsed VEVENT into a schedule event. A plain event
// becomes a Range; RDATE or RRULE make it a DateSet holding every day
// touched by an occurrence. An override whose RECURRENCE-ID matches an
// occurrence replaces that occurrence's days, or drops them when the
// override is cancelled. ok is false when no day remains.
func toSchedule(ve vevent, overrides []vevent, cfg ExpandConfig) (model.ScheduleEvent, bool) {
	ev := model.ScheduleEvent{
		ID:     ve.UID,
		Course: ve.Summary,
		Branch: ve.Location,
		Status: ve.Status,
		Notes:  ve.Description,
	}

	if ve.RawRRule == "" && len(ve.RDates) == 0 {
		base := ve
		if o, ok := findOverride(overrides, ve.Start, ve.AllDay, cfg.Location); ok {
			if o.Status == model.StatusCancelled {
				return ev, false
			}
			base = o
		}
		first, last := occurrenceDays(base, base.Start, cfg.Location)
		ev.Span = model.Range{Start: first, End: last}
		return ev, true
	}

	var starts []time.Time
	if ve.RawRRule != "" {
		occ, err := expandRule(ve, cfg)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "uid", ve.UID, "rrule", ve.RawRRule)
			return ev, false
		}
		starts = occ
	} else {
		starts = append([]time.Time{ve.Start}, ve.RDates...)
	}

	excluded := make(map[model.Day]bool, len(ve.ExDates))
	for _, ex := range ve.ExDates {
		excluded[model.DayOf(ex.In(cfg.Location))] = true
	}

	var days []model.Day
	for _, s := range starts {
		first, last := occurrenceDays(ve, s, cfg.Location)
		if excluded[first] {
			continue
		}
		if o, ok := findOverride(overrides, s, ve.AllDay, cfg.Location); ok {
			if o.Status == model.StatusCancelled {
				continue
			}
			first, last = occurrenceDays(o, o.Start, cfg.Location)
		}
		for d := first; !d.After(last); d = d.AddDays(1) {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return ev, false
	}
	ev.Span = model.NewDateSet(days...)
	return ev, true
}

// expandRule evaluates RRULE, RDATE and EXDATE from DTSTART up to the
// horizon and returns the occurrence start times.
func expandRule(ve vevent, cfg ExpandConfig) ([]time.Time, error) {
	r, err := rrule.StrToRRule(ve.RawRRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(ve.Start)

	var set rrule.Set
	set.RRule(r)
	for _, rd := range ve.RDates {
		set.RDate(rd.In(ve.Start.Location()))
	}
	for _, ex := range ve.ExDates {
		// Best effort: align EXDATE location with event's start.
		set.ExDate(ex.In(ve.Start.Location()))
	}

	// Walk the set lazily so a dense rule never materialises past the cap.
	until := ve.Start.AddDate(0, 0, cfg.HorizonDays)
	var occ []time.Time
	next := set.Iterator()
	for t, ok := next(); ok && !t.After(until); t, ok = next() {
		if t.Before(ve.Start) {
			continue
		}
		if len(occ) == cfg.MaxDates {
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ve.UID,
				"cap", cfg.MaxDates,
			)
			break
		}
		occ = append(occ, t)
	}
	return occ, nil
}

// findOverride returns the override whose RECURRENCE-ID matches the
// occurrence starting at start. All-day series match on the calendar day.
func findOverride(overrides []vevent, start time.Time, allDay bool, loc *time.Location) (vevent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o, true
		}
		if allDay && model.DayOf(o.RecurrenceID.In(loc)) == model.DayOf(start.In(loc)) {
			return o, true
		}
	}
	return vevent{}, false
}

// occurrenceDays returns the first and last calendar day covered by an
// occurrence starting at start and lasting as long as the base event.
func occurrenceDays(ve vevent, start time.Time, loc *time.Location) (first, last model.Day) {
	first = model.DayOf(start.In(loc))
	if ve.End.IsZero() || !ve.End.After(ve.Start) {
		return first, first
	}
	if ve.AllDay {
		// Count whole days so DST shifts inside the span do not matter.
		n := daysBetween(model.DayOf(ve.Start.In(loc)), model.DayOf(ve.End.In(loc)))
		if n <= 1 {
			return first, first
		}
		return first, first.AddDays(n - 1)
	}
	end := start.Add(ve.End.Sub(ve.Start)).In(loc)
	last = model.DayOf(end)

	// DTEND is exclusive, so a timed end at midnight closes on the previous day.
	midnight := end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0
	if midnight && last.After(first) {
		last = last.AddDays(-1)
	}
	return first, last
}

func daysBetween(a, b model.Day) int {
	return int(b.Time(time.UTC).Sub(a.Time(time.UTC)).Hours() / 24)
}
