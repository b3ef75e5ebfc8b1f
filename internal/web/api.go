package web

import (
	"net/http"
	"strings"
	"time"

	"tmscal/internal/ics"
	"tmscal/internal/layout"
	appLog "tmscal/internal/log"
	"tmscal/internal/model"
	"tmscal/internal/sweep"
)

// eventDTO is the JSON view of one schedule event.
type eventDTO struct {
	ID       string         `json:"id"`
	Course   string         `json:"course"`
	Branch   string         `json:"branch,omitempty"`
	Kind     model.Kind     `json:"kind"`
	Stored   model.Status   `json:"stored_status"`
	Start    *model.Day     `json:"start,omitempty"`
	End      *model.Day     `json:"end,omitempty"`
	Dates    []model.Day    `json:"dates,omitempty"`
	Track    *int           `json:"track,omitempty"`
	Status   layout.Display `json:"status"`
	Color    string         `json:"color"`
	HasNotes bool           `json:"has_notes"`
}

type slotDTO struct {
	Track   int    `json:"track"`
	EventID string `json:"event_id,omitempty"`
	IsStart bool   `json:"is_start,omitempty"`
	IsEnd   bool   `json:"is_end,omitempty"`
}

// calendarResponse is the JSON shape of /api/calendar.
type calendarResponse struct {
	Year      int                     `json:"year"`
	Month     time.Month              `json:"month"`
	Today     model.Day               `json:"today"`
	WeekStart string                  `json:"week_start"`
	MaxTrack  int                     `json:"max_track"`
	Weeks     [][7]*model.Day         `json:"weeks"`
	Events    []eventDTO              `json:"events"`
	Days      map[model.Day][]slotDTO `json:"days"`
}

type yearEntryDTO struct {
	EventID string         `json:"event_id"`
	Branch  string         `json:"branch,omitempty"`
	Days    string         `json:"days"`
	Status  layout.Display `json:"status"`
	Color   string         `json:"color"`
}

type courseRowDTO struct {
	Course string             `json:"course"`
	Months [12][]yearEntryDTO `json:"months"`
}

type yearResponse struct {
	Year int            `json:"year"`
	Rows []courseRowDTO `json:"rows"`
}

type sweepResponse struct {
	Today   model.Day      `json:"today"`
	Changes []sweep.Change `json:"changes"`
}

// colorFor maps a severity to its configured palette color.
func (s *Server) colorFor(sev layout.Severity) string {
	p := s.cfg.Palette
	switch sev {
	case layout.SeverityWarning:
		return p.Ongoing
	case layout.SeverityMuted:
		return p.Finished
	case layout.SeverityDanger:
		return p.Cancelled
	default:
		return p.Upcoming
	}
}

func (s *Server) toDTO(e model.ScheduleEvent, display layout.Display) eventDTO {
	dto := eventDTO{
		ID:       e.ID,
		Course:   e.Course,
		Branch:   e.Branch,
		Kind:     e.Kind(),
		Stored:   e.Status,
		Status:   display,
		Color:    s.colorFor(display.Severity),
		HasNotes: strings.TrimSpace(e.Notes) != "",
	}
	if start, end, ok := e.Bounds(); ok {
		dto.Start, dto.End = &start, &end
	}
	if set, ok := e.Span.(model.DateSet); ok {
		dto.Dates = set.Dates
	}
	return dto
}

// handleCalendarJSON returns the computed month layout.
//
// GET /api/calendar?year=2025&month=1
func (s *Server) handleCalendarJSON(w http.ResponseWriter, r *http.Request) {
	events, err := s.events(r.Context())
	if err != nil {
		appLog.Error("api calendar: loading schedules failed", err)
		writeError(w, http.StatusBadGateway, "failed to load schedules")
		return
	}

	year, month := s.yearMonth(r)
	now := s.now()
	m := layout.Compute(events, year, month, now)

	resp := calendarResponse{
		Year:      year,
		Month:     month,
		Today:     model.DayOf(now),
		WeekStart: s.cfg.WeekStart,
		MaxTrack:  m.MaxTrack,
		Events:    make([]eventDTO, 0, len(m.Events)),
		Days:      make(map[model.Day][]slotDTO, len(m.Days)),
	}
	for _, week := range m.Weeks(s.cfg.FirstWeekday()) {
		var row [7]*model.Day
		for i, d := range week {
			if !d.IsZero() {
				row[i] = &d
			}
		}
		resp.Weeks = append(resp.Weeks, row)
	}
	for _, e := range m.Events {
		dto := s.toDTO(e, m.Statuses[e.ID])
		if track, ok := m.Tracks.Track(e.ID); ok {
			dto.Track = &track
		}
		resp.Events = append(resp.Events, dto)
	}
	for d, slots := range m.Days {
		out := make([]slotDTO, 0, len(slots))
		for _, sl := range slots {
			dto := slotDTO{Track: sl.Track, IsStart: sl.IsStart, IsEnd: sl.IsEnd}
			if !sl.Empty() {
				dto.EventID = sl.Event.ID
			}
			out = append(out, dto)
		}
		resp.Days[d] = out
	}

	appLog.Debug("api calendar request", "year", year, "month", int(month), "events", len(m.Events), "max_track", m.MaxTrack)
	writeJSON(w, http.StatusOK, resp)
}

// handleYear returns the per-course year list.
//
// GET /api/year?year=2025
func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	events, err := s.events(r.Context())
	if err != nil {
		appLog.Error("api year: loading schedules failed", err)
		writeError(w, http.StatusBadGateway, "failed to load schedules")
		return
	}

	year, _ := s.yearMonth(r)
	rows := layout.YearView(events, year, s.now())

	resp := yearResponse{Year: year, Rows: make([]courseRowDTO, 0, len(rows))}
	for _, row := range rows {
		dto := courseRowDTO{Course: row.Course}
		for i, entries := range row.Months {
			dto.Months[i] = make([]yearEntryDTO, 0, len(entries))
			for _, e := range entries {
				dto.Months[i] = append(dto.Months[i], yearEntryDTO{
					EventID: e.Event.ID,
					Branch:  e.Event.Branch,
					Days:    e.Days,
					Status:  e.Display,
					Color:   s.colorFor(e.Display.Severity),
				})
			}
		}
		resp.Rows = append(resp.Rows, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents lists every known event with its resolved status.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events(r.Context())
	if err != nil {
		appLog.Error("api events: loading schedules failed", err)
		writeError(w, http.StatusBadGateway, "failed to load schedules")
		return
	}

	now := s.now()
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, s.toDTO(e, layout.ResolveStatus(e, now)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// handleSweep recalculates stored statuses on demand.
//
// POST /api/sweep with "Authorization: Bearer <sweep.token>" when a token is
// configured.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no schedule store configured")
		return
	}
	if tok := s.cfg.Sweep.Token; tok != "" {
		given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !secureCompare(given, tok) {
			writeError(w, http.StatusUnauthorized, "invalid sweep token")
			return
		}
	}

	today := model.DayOf(s.now())
	changes, err := sweep.Run(r.Context(), s.deps.Store, today)
	if len(changes) > 0 {
		s.Invalidate()
	}
	if err != nil {
		appLog.Error("api sweep failed", err, "updated", len(changes))
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	if changes == nil {
		changes = []sweep.Change{}
	}
	writeJSON(w, http.StatusOK, sweepResponse{Today: today, Changes: changes})
}

// handleICS exports every event as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	events, err := s.events(r.Context())
	if err != nil {
		appLog.Error("calendar.ics: loading schedules failed", err)
		http.Error(w, "failed to load schedules", http.StatusBadGateway)
		return
	}
	if s.guest(r) {
		// Copy so the cached events keep their notes.
		public := make([]model.ScheduleEvent, len(events))
		for i, e := range events {
			e.Notes = ""
			public[i] = e
		}
		events = public
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="tmscal.ics"`)
	_, _ = w.Write([]byte(ics.Export(events, s.deps.Now())))
}
