package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

// PropertyStoredStatus carries the back-office status verbatim so a feed
// produced by Export imports back without loss.
const PropertyStoredStatus = ical.ComponentProperty("X-TMS-STATUS")

const propertyRdate = ical.ComponentProperty("RDATE")

// vevent is the raw, unexpanded view of one VEVENT.
type vevent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Status      model.Status

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
	RDates   []time.Time

	// RecurrenceID is set on an override of one instance of a series.
	RecurrenceID time.Time
}

func (v vevent) isOverride() bool { return !v.RecurrenceID.IsZero() }

// ParseICS parses one ICS payload into schedule events.
//
//   - UID, SUMMARY, LOCATION and DESCRIPTION become ID, Course, Branch and
//     Notes.
//   - A plain DTSTART/DTEND pair becomes a regular range. All-day DTEND is
//     exclusive.
//   - RDATE or RRULE turn the event into a staggered date set (see expand.go).
//   - VEVENTs carrying RECURRENCE-ID move single instances of the series with
//     the same UID, so each UID yields at most one event.
//
// VEVENTs that cannot be read are logged and skipped.
func ParseICS(src Source, body []byte, cfg ExpandConfig) ([]model.ScheduleEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cfg = cfg.withDefaults()

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("ics: parse %s: %w", src.ID, err)
	}

	// Group masters and overrides by UID, keeping feed order of masters.
	var masters []vevent
	seen := make(map[string]bool)
	overridesByUID := make(map[string][]vevent)
	for _, comp := range cal.Events() {
		ve, perr := parseVEvent(comp, cfg.Location)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		if ve.isOverride() {
			overridesByUID[ve.UID] = append(overridesByUID[ve.UID], ve)
			continue
		}
		if seen[ve.UID] {
			appLog.Debug("ics duplicate UID skipped", "id", src.ID, "uid", ve.UID)
			continue
		}
		seen[ve.UID] = true
		masters = append(masters, ve)
	}
	for uid, ovs := range overridesByUID {
		if !seen[uid] {
			appLog.Debug("ics override without series skipped", "id", src.ID, "uid", uid, "count", len(ovs))
		}
	}

	events := make([]model.ScheduleEvent, 0, len(masters))
	for _, ve := range masters {
		ev, ok := toSchedule(ve, overridesByUID[ve.UID], cfg)
		if !ok {
			appLog.Debug("ics vevent has no dates in horizon", "id", src.ID, "uid", ve.UID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	out.Status = storedStatus(ve)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, fmt.Errorf("%s: missing DTSTART", out.UID)
	}
	out.AllDay = isDateValue(dtStart)

	start, err := propertyTime(dtStart, loc)
	if err != nil {
		// TZID lookups go through the library, which knows VTIMEZONE blocks.
		libStart, libErr := ve.GetStartAt()
		if libErr != nil {
			return out, fmt.Errorf("%s: DTSTART: %w", out.UID, err)
		}
		start = libStart
	}
	out.Start = start

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
		end, err := propertyTime(dtEnd, loc)
		if err != nil {
			if libEnd, libErr := ve.GetEndAt(); libErr == nil {
				end = libEnd
			}
		}
		out.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}
	out.ExDates = listTimes(ve.GetProperties(ical.ComponentPropertyExdate), loc)
	out.RDates = listTimes(ve.GetProperties(propertyRdate), loc)

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil && p.Value != "" {
		rid, err := propertyTime(p, loc)
		if err != nil {
			return out, fmt.Errorf("%s: RECURRENCE-ID: %w", out.UID, err)
		}
		out.RecurrenceID = rid
	}

	return out, nil
}

// storedStatus maps STATUS to a stored status; X-TMS-STATUS wins when set.
func storedStatus(ve *ical.VEvent) model.Status {
	if p := ve.GetProperty(PropertyStoredStatus); p != nil && strings.TrimSpace(p.Value) != "" {
		return model.Status(strings.ToLower(strings.TrimSpace(p.Value)))
	}
	p := ve.GetProperty(ical.ComponentPropertyStatus)
	if p == nil {
		return model.StatusPlanned
	}
	switch strings.ToUpper(strings.TrimSpace(p.Value)) {
	case "CANCELLED":
		return model.StatusCancelled
	case "CONFIRMED":
		return model.StatusConfirmed
	default:
		return model.StatusPlanned
	}
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// propertyTime reads a DATE or DATE-TIME property. Floating times and dates
// are interpreted in loc; TZID must name an IANA zone.
func propertyTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 && !isDateValue(p) {
		tz, err := time.LoadLocation(tzs[0])
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown TZID %q: %w", tzs[0], err)
		}
		return parseICSTime(p.Value, tz)
	}
	return parseICSTime(p.Value, loc)
}

func listTimes(props []*ical.IANAProperty, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range props {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			single := *p
			single.Value = part
			if t, err := propertyTime(&single, loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// parseICSTime parses DATE (20250101), floating DATE-TIME (20250101T090000)
// and UTC DATE-TIME (20250101T090000Z) values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
