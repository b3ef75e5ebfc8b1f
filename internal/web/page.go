package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"tmscal/internal/layout"
	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

//go:embed templates/*.html
var templates embed.FS

var pageFuncs = template.FuncMap{
	"lower": strings.ToLower,
}

type pageSlot struct {
	Empty   bool
	ID      string
	Course  string
	Branch  string
	Label   layout.Label
	Color   string
	IsStart bool
	IsEnd   bool
	Notes   template.HTML
}

type pageDay struct {
	InMonth bool
	Day     int
	Date    string
	Today   bool
	Slots   []pageSlot
}

type pageData struct {
	Title     string
	Year      int
	Month     int
	Prev      string
	Next      string
	Weekdays  []string
	Weeks     [][7]pageDay
	Legend    []legendItem
	Generated string
}

type legendItem struct {
	Label layout.Label
	Color string
}

// handleCalendarPage renders the month grid as HTML. The root element sets
// data-ready="true" once rendered so headless captures know when to shoot.
//
// GET /calendar?year=2025&month=1
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	events, err := s.events(r.Context())
	if err != nil {
		appLog.Error("calendar page: loading schedules failed", err)
		http.Error(w, "failed to load schedules", http.StatusBadGateway)
		return
	}

	year, month := s.yearMonth(r)
	now := s.now()
	m := layout.Compute(events, year, month, now)

	data := pageData{
		Title:     fmt.Sprintf("%s %d", month, year),
		Year:      year,
		Month:     int(month),
		Prev:      monthLink(year, month, -1),
		Next:      monthLink(year, month, 1),
		Generated: now.Format("2006-01-02 15:04 MST"),
	}
	start := s.cfg.FirstWeekday()
	for i := range 7 {
		data.Weekdays = append(data.Weekdays, time.Weekday((int(start) + i) % 7).String()[:3])
	}
	for _, l := range []layout.Label{layout.LabelUpcoming, layout.LabelOngoing, layout.LabelFinished, layout.LabelCancelled} {
		data.Legend = append(data.Legend, legendItem{Label: l, Color: s.colorFor(layout.DisplayFor(l).Severity)})
	}

	today := model.DayOf(now)
	guest := s.guest(r)
	notes := make(map[string]template.HTML)
	for _, week := range m.Weeks(start) {
		var row [7]pageDay
		for i, d := range week {
			if d.IsZero() {
				continue
			}
			pd := pageDay{InMonth: true, Day: d.Day, Date: d.String(), Today: d == today}
			for _, sl := range m.Days[d] {
				if sl.Empty() {
					pd.Slots = append(pd.Slots, pageSlot{Empty: true})
					continue
				}
				e := sl.Event
				if _, ok := notes[e.ID]; !ok && !guest {
					notes[e.ID] = s.renderNotes(e)
				}
				display := m.Statuses[e.ID]
				pd.Slots = append(pd.Slots, pageSlot{
					ID:      e.ID,
					Course:  e.Course,
					Branch:  e.Branch,
					Label:   display.Label,
					Color:   s.colorFor(display.Severity),
					IsStart: sl.IsStart,
					IsEnd:   sl.IsEnd,
					Notes:   notes[e.ID],
				})
			}
			row[i] = pd
		}
		data.Weeks = append(data.Weeks, row)
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		appLog.Error("calendar page: template failed", err)
		http.Error(w, "failed to render calendar", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// renderNotes converts course notes from markdown. goldmark drops raw HTML
// by default, so the output is safe to embed.
func (s *Server) renderNotes(e *model.ScheduleEvent) template.HTML {
	if strings.TrimSpace(e.Notes) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(e.Notes), &buf); err != nil {
		appLog.Error("calendar page: notes markdown failed", err, "id", e.ID)
		return template.HTML(template.HTMLEscapeString(e.Notes))
	}
	return template.HTML(buf.String())
}

func monthLink(year int, month time.Month, delta int) string {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("/calendar?year=%d&month=%d", t.Year(), int(t.Month()))
}
