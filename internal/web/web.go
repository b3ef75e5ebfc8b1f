package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/crypto/bcrypt"

	"tmscal/internal/config"
	appLog "tmscal/internal/log"
	"tmscal/internal/model"
	"tmscal/internal/sweep"
)

const eventsCacheTTL = 30 * time.Second

// EventSource supplies the schedule events shown on the calendar.
type EventSource interface {
	Events(ctx context.Context) ([]model.ScheduleEvent, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Events EventSource
	// Store, when set, enables POST /api/sweep.
	Store sweep.Store
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the calendar page, the JSON API and the ICS export.
type Server struct {
	cfg   *config.Config
	debug bool
	mux   *http.ServeMux
	deps  Deps
	loc   *time.Location

	page     *template.Template
	markdown goldmark.Markdown

	// In-memory cache of the event list so page loads do not hit the store
	// and every feed each time. Sweeps invalidate it.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

type eventsCache struct {
	events    []model.ScheduleEvent
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, debug bool, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:      cfg,
		debug:    debug,
		mux:      http.NewServeMux(),
		deps:     deps,
		loc:      cfg.Location(),
		page:     template.Must(template.New("calendar.html").Funcs(pageFuncs).ParseFS(templates, "templates/calendar.html")),
		markdown: goldmark.New(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Invalidate drops the cached event list.
func (s *Server) Invalidate() {
	s.eventsMu.Lock()
	s.eventsCache = nil
	s.eventsMu.Unlock()
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendarJSON)
	s.mux.HandleFunc("GET /api/year", s.handleYear)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/sweep", s.handleSweep)
	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	ba := s.cfg.BasicAuth
	return ba.Username != "" && (ba.Password != "" || ba.PasswordHash != "")
}

// publicPath lists paths served without Basic Auth: the health probe, the
// page and feed the snapshot and calendar clients read (without notes for
// guests), and the sweep hook when it has its own bearer token.
func (s *Server) publicPath(path string) bool {
	switch path {
	case "/health", "/calendar", "/calendar.ics":
		return true
	case "/api/sweep":
		return s.cfg.Sweep.Token != ""
	}
	return false
}

// basicAuthMiddleware wraps every non-public handler with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.publicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !s.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tmscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorized reports whether r carries valid Basic Auth credentials.
func (s *Server) authorized(r *http.Request) bool {
	ba := s.cfg.BasicAuth
	u, p, ok := r.BasicAuth()
	return ok && secureCompare(u, ba.Username) && checkPassword(ba, p)
}

// guest reports whether r reached a public page anonymously while Basic
// Auth is configured. Course notes are withheld from guests.
func (s *Server) guest(r *http.Request) bool {
	return s.basicAuthEnabled() && !s.authorized(r)
}

func checkPassword(ba *config.BasicAuthConfig, given string) bool {
	if ba.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(ba.PasswordHash), []byte(given)) == nil
	}
	return secureCompare(given, ba.Password)
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last snapshot PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile answers 404 for a missing snapshot.
	http.ServeFile(w, r, s.cfg.Snapshot.Output)
}

// events returns the cached event list or loads a fresh one. A load that
// fails outright is an error; a partial load is logged and served but not
// cached.
func (s *Server) events(ctx context.Context) ([]model.ScheduleEvent, error) {
	now := time.Now()

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < eventsCacheTTL {
		return ec.events, nil
	}

	if s.deps.Events == nil {
		return nil, nil
	}
	events, err := s.deps.Events.Events(ctx)
	if err != nil {
		if len(events) == 0 {
			return nil, err
		}
		appLog.Error("loading schedules partially failed", err, "count", len(events))
		return events, nil
	}

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{events: events, updatedAt: time.Now()}
	s.eventsMu.Unlock()
	return events, nil
}

// now returns the current instant in the display timezone.
func (s *Server) now() time.Time {
	return s.deps.Now().In(s.loc)
}

// yearMonth reads ?year=&month=, defaulting to the current month.
func (s *Server) yearMonth(r *http.Request) (int, time.Month) {
	now := s.now()
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if month < 1 || month > 12 {
		month = int(now.Month())
	}
	if year < 1 || year > 9999 {
		year = now.Year()
	}
	return year, time.Month(month)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
