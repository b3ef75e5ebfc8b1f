package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tmscal/internal/model"
)

const icsDateLayout = "20060102"

// ProductID identifies feeds written by Export.
const ProductID = "-//tmscal//Training Calendar//EN"

// Export serialises schedule events as an iCalendar feed. Regular events are
// all-day DTSTART/DTEND with an exclusive end; staggered events carry their
// first date as DTSTART and the rest as RDATE. Events without dates are
// left out. now stamps DTSTAMP.
func Export(events []model.ScheduleEvent, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	stamp := now.UTC()
	for _, e := range events {
		if _, _, ok := e.Bounds(); !ok || e.ID == "" {
			continue
		}

		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(e.Course)
		if e.Branch != "" {
			ve.SetLocation(e.Branch)
		}
		if e.Notes != "" {
			ve.SetDescription(e.Notes)
		}
		if s := icsStatus(e.Status); s != "" {
			ve.SetProperty(ical.ComponentPropertyStatus, s)
		}
		if e.Status != "" {
			ve.SetProperty(PropertyStoredStatus, string(e.Status))
		}

		switch span := e.Span.(type) {
		case model.Range:
			setDate(ve, ical.ComponentPropertyDtStart, span.Start)
			setDate(ve, ical.ComponentPropertyDtEnd, span.End.AddDays(1))
		case model.DateSet:
			first := span.Dates[0]
			setDate(ve, ical.ComponentPropertyDtStart, first)
			setDate(ve, ical.ComponentPropertyDtEnd, first.AddDays(1))
			if len(span.Dates) > 1 {
				rest := make([]string, 0, len(span.Dates)-1)
				for _, d := range span.Dates[1:] {
					rest = append(rest, icsDate(d))
				}
				ve.AddProperty(propertyRdate, strings.Join(rest, ","), ical.WithValue(string(ical.ValueDataTypeDate)))
			}
		}
	}
	return cal.Serialize()
}

func setDate(ve *ical.VEvent, prop ical.ComponentProperty, d model.Day) {
	ve.SetProperty(prop, icsDate(d), ical.WithValue(string(ical.ValueDataTypeDate)))
}

func icsDate(d model.Day) string {
	return d.Time(time.UTC).Format(icsDateLayout)
}

func icsStatus(s model.Status) string {
	switch s {
	case model.StatusCancelled:
		return "CANCELLED"
	case model.StatusConfirmed, model.StatusOngoing, model.StatusFinished:
		return "CONFIRMED"
	case model.StatusPlanned:
		return "TENTATIVE"
	}
	return ""
}
