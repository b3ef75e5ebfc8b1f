package layout

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"tmscal/internal/model"
)

// YearEntry is one event shown in one month column of the year view.
type YearEntry struct {
	Event   model.ScheduleEvent
	Days    string
	Display Display
}

// CourseRow is one course's line in the year view. Months is indexed by
// time.Month-1.
type CourseRow struct {
	Course string
	Months [12][]YearEntry
}

// YearView groups events of year by course and month. A regular event is
// listed under the month it starts in and labelled "start - end"; a staggered
// event is listed under every month holding one of its dates, labelled with
// that month's day numbers.
func YearView(events []model.ScheduleEvent, year int, now time.Time) []CourseRow {
	rows := make(map[string]*CourseRow)
	row := func(course string) *CourseRow {
		r, ok := rows[course]
		if !ok {
			r = &CourseRow{Course: course}
			rows[course] = r
		}
		return r
	}

	for _, e := range events {
		if !schedulable(e) {
			continue
		}
		display := ResolveStatus(e, now)

		switch s := e.Span.(type) {
		case model.Range:
			if s.Start.Year != year {
				continue
			}
			r := row(e.Course)
			r.Months[s.Start.Month-1] = append(r.Months[s.Start.Month-1], YearEntry{
				Event:   e,
				Days:    fmt.Sprintf("%d - %d", s.Start.Day, s.End.Day),
				Display: display,
			})
		case model.DateSet:
			var byMonth [12][]string
			for _, d := range s.Dates {
				if d.Year == year {
					byMonth[d.Month-1] = append(byMonth[d.Month-1], strconv.Itoa(d.Day))
				}
			}
			for i, days := range byMonth {
				if len(days) == 0 {
					continue
				}
				r := row(e.Course)
				r.Months[i] = append(r.Months[i], YearEntry{
					Event:   e,
					Days:    strings.Join(days, ", "),
					Display: display,
				})
			}
		}
	}

	out := make([]CourseRow, 0, len(rows))
	for _, r := range rows {
		for i := range r.Months {
			slices.SortStableFunc(r.Months[i], func(a, b YearEntry) int {
				return a.Event.Start().Compare(b.Event.Start())
			})
		}
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b CourseRow) int { return strings.Compare(a.Course, b.Course) })
	return out
}
