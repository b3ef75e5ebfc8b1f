package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tmscal/internal/model"
)

var manila = time.FixedZone("PHT", 8*60*60)

func calendar(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}
	for _, e := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, strings.Split(strings.TrimSpace(e), "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func d(month time.Month, day int) model.Day { return model.NewDay(2025, month, day) }

func parseOne(t *testing.T, body []byte, cfg ExpandConfig) map[string]model.ScheduleEvent {
	t.Helper()
	if cfg.Location == nil {
		cfg.Location = manila
	}
	events, err := ParseICS(Source{ID: "test"}, body, cfg)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	out := make(map[string]model.ScheduleEvent, len(events))
	for _, e := range events {
		out[e.ID] = e
	}
	return out
}

func TestParseICSRegular(t *testing.T) {
	body := calendar(
		`UID:allday
		SUMMARY:Forklift Operation
		LOCATION:Cebu
		DESCRIPTION:Bring PPE
		STATUS:CANCELLED
		DTSTART;VALUE=DATE:20250106
		DTEND;VALUE=DATE:20250111`,
		`UID:oneday
		SUMMARY:Safety Orientation
		DTSTART;VALUE=DATE:20250115`,
		`UID:timed
		SUMMARY:Welding
		STATUS:CONFIRMED
		DTSTART:20250106T090000
		DTEND:20250107T170000`,
		`UID:utc
		SUMMARY:Night shift
		STATUS:TENTATIVE
		DTSTART:20250105T230000Z
		DTEND:20250106T030000Z`,
		`UID:midnight
		SUMMARY:Overnight
		DTSTART:20250106T200000
		DTEND:20250107T000000`,
	)
	got := parseOne(t, body, ExpandConfig{})

	tests := []struct {
		id         string
		start, end model.Day
		status     model.Status
	}{
		{"allday", d(1, 6), d(1, 10), model.StatusCancelled},
		{"oneday", d(1, 15), d(1, 15), model.StatusPlanned},
		{"timed", d(1, 6), d(1, 7), model.StatusConfirmed},
		{"utc", d(1, 6), d(1, 6), model.StatusPlanned},
		{"midnight", d(1, 6), d(1, 6), model.StatusPlanned},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			e, ok := got[tt.id]
			if !ok {
				t.Fatalf("event %s missing", tt.id)
			}
			r, ok := e.Span.(model.Range)
			if !ok {
				t.Fatalf("span = %T, want Range", e.Span)
			}
			if r.Start != tt.start || r.End != tt.end {
				t.Errorf("range = %v..%v, want %v..%v", r.Start, r.End, tt.start, tt.end)
			}
			if e.Status != tt.status {
				t.Errorf("status = %q, want %q", e.Status, tt.status)
			}
		})
	}

	if e := got["allday"]; e.Course != "Forklift Operation" || e.Branch != "Cebu" || e.Notes != "Bring PPE" {
		t.Errorf("fields not mapped: %+v", e)
	}
}

func TestParseICSSkipsBrokenEvents(t *testing.T) {
	body := calendar(
		`SUMMARY:No UID
		DTSTART;VALUE=DATE:20250106`,
		`UID:nostart
		SUMMARY:No start`,
		`UID:ok
		DTSTART;VALUE=DATE:20250106`,
	)
	got := parseOne(t, body, ExpandConfig{})
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1: %v", len(got), got)
	}
	if _, ok := got["ok"]; !ok {
		t.Error("valid event dropped")
	}
}

func TestParseICSEmptyBody(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, nil, ExpandConfig{}); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestParseICSStoredStatusOverride(t *testing.T) {
	body := calendar(`UID:a
		STATUS:CONFIRMED
		X-TMS-STATUS:finished
		DTSTART;VALUE=DATE:20250106`)
	got := parseOne(t, body, ExpandConfig{})
	if got["a"].Status != model.StatusFinished {
		t.Errorf("status = %q, want finished", got["a"].Status)
	}
}

func TestParseICSStaggered(t *testing.T) {
	body := calendar(
		`UID:rdate
		DTSTART;VALUE=DATE:20250203
		DTEND;VALUE=DATE:20250204
		RDATE;VALUE=DATE:20250210,20250217`,
		`UID:weekly
		DTSTART;VALUE=DATE:20250106
		DTEND;VALUE=DATE:20250107
		RRULE:FREQ=WEEKLY;COUNT=3
		EXDATE;VALUE=DATE:20250113`,
		`UID:twoday
		DTSTART;VALUE=DATE:20250106
		DTEND;VALUE=DATE:20250108
		RRULE:FREQ=WEEKLY;COUNT=2`,
		`UID:daily
		DTSTART;VALUE=DATE:20250101
		RRULE:FREQ=DAILY`,
		`UID:badrule
		DTSTART;VALUE=DATE:20250101
		RRULE:FREQ=SOMETIMES`,
	)
	got := parseOne(t, body, ExpandConfig{HorizonDays: 30, MaxDates: 5})

	tests := []struct {
		id   string
		want []model.Day
	}{
		{"rdate", []model.Day{d(2, 3), d(2, 10), d(2, 17)}},
		{"weekly", []model.Day{d(1, 6), d(1, 20)}},
		{"twoday", []model.Day{d(1, 6), d(1, 7), d(1, 13), d(1, 14)}},
		{"daily", []model.Day{d(1, 1), d(1, 2), d(1, 3), d(1, 4), d(1, 5)}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			set, ok := got[tt.id].Span.(model.DateSet)
			if !ok {
				t.Fatalf("span = %T, want DateSet", got[tt.id].Span)
			}
			if !slices.Equal(set.Dates, tt.want) {
				t.Errorf("dates = %v, want %v", set.Dates, tt.want)
			}
		})
	}
	if _, ok := got["badrule"]; ok {
		t.Error("event with unparsable RRULE should be skipped")
	}
}

func TestParseICSRecurrenceOverrides(t *testing.T) {
	body := calendar(
		`UID:weekly
		SUMMARY:Forklift Operation
		DTSTART;VALUE=DATE:20250106
		RRULE:FREQ=WEEKLY;COUNT=3`,
		`UID:weekly
		SUMMARY:Forklift Operation
		RECURRENCE-ID;VALUE=DATE:20250113
		DTSTART;VALUE=DATE:20250115
		DTEND;VALUE=DATE:20250117`,
		`UID:timed
		DTSTART:20250106T090000
		DTEND:20250106T170000
		RRULE:FREQ=WEEKLY;COUNT=3`,
		`UID:timed
		RECURRENCE-ID:20250113T090000
		STATUS:CANCELLED
		DTSTART:20250113T090000
		DTEND:20250113T170000`,
		`UID:single
		DTSTART;VALUE=DATE:20250203
		DTEND;VALUE=DATE:20250204`,
		`UID:single
		RECURRENCE-ID;VALUE=DATE:20250203
		DTSTART;VALUE=DATE:20250205
		DTEND;VALUE=DATE:20250207`,
		`UID:orphan
		RECURRENCE-ID;VALUE=DATE:20250301
		DTSTART;VALUE=DATE:20250302`,
	)
	events, err := ParseICS(Source{ID: "test"}, body, ExpandConfig{Location: manila})
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	ids := make(map[string]int)
	for _, e := range events {
		ids[e.ID]++
	}
	for id, n := range ids {
		if n != 1 {
			t.Errorf("id %q returned %d times, want once", id, n)
		}
	}
	if ids["orphan"] != 0 {
		t.Error("override without a series should be skipped")
	}

	got := parseOne(t, body, ExpandConfig{})
	tests := []struct {
		id   string
		want []model.Day
	}{
		{"weekly", []model.Day{d(1, 6), d(1, 15), d(1, 16), d(1, 20)}},
		{"timed", []model.Day{d(1, 6), d(1, 20)}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			set, ok := got[tt.id].Span.(model.DateSet)
			if !ok {
				t.Fatalf("span = %T, want DateSet", got[tt.id].Span)
			}
			if !slices.Equal(set.Dates, tt.want) {
				t.Errorf("dates = %v, want %v", set.Dates, tt.want)
			}
		})
	}

	want := model.Range{Start: d(2, 5), End: d(2, 6)}
	if r, ok := got["single"].Span.(model.Range); !ok || r != want {
		t.Errorf("single span = %v, want %v", got["single"].Span, want)
	}
}

func TestParseICSDenseRuleStopsAtCap(t *testing.T) {
	body := calendar(
		`UID:dense
		DTSTART:20250101T080000
		RRULE:FREQ=SECONDLY`,
	)
	got := parseOne(t, body, ExpandConfig{MaxDates: 3})

	set, ok := got["dense"].Span.(model.DateSet)
	if !ok {
		t.Fatalf("span = %T, want DateSet", got["dense"].Span)
	}
	if want := []model.Day{d(1, 1)}; !slices.Equal(set.Dates, want) {
		t.Errorf("dates = %v, want %v", set.Dates, want)
	}
}

func TestExportRoundTrip(t *testing.T) {
	in := []model.ScheduleEvent{
		model.Regular("r1", "Forklift Operation", "Cebu", model.StatusCancelled, d(1, 6), d(1, 10)),
		model.Staggered("s1", "Welding NC II", "Davao", model.StatusOngoing, d(2, 3), d(2, 10), d(2, 17)),
		model.Regular("r2", "One Day", "", model.StatusPlanned, d(3, 1), d(3, 1)),
		{ID: "unknown", Course: "No dates"},
	}
	in[0].Notes = "Bring PPE"

	feed := Export(in, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(feed, "RDATE;VALUE=DATE:20250210,20250217") {
		t.Errorf("RDATE not written:\n%s", feed)
	}
	if strings.Contains(feed, "UID:unknown") {
		t.Error("event without dates exported")
	}

	got := parseOne(t, []byte(feed), ExpandConfig{})
	if len(got) != 3 {
		t.Fatalf("round trip returned %d events", len(got))
	}
	for _, want := range in[:3] {
		e := got[want.ID]
		if e.Course != want.Course || e.Branch != want.Branch || e.Status != want.Status || e.Notes != want.Notes {
			t.Errorf("%s: got %+v, want %+v", want.ID, e, want)
		}
		if e.Kind() != want.Kind() || e.Start() != want.Start() || e.End() != want.End() {
			t.Errorf("%s: span %#v, want %#v", want.ID, e.Span, want.Span)
		}
	}
	if set := got["s1"].Span.(model.DateSet); len(set.Dates) != 3 {
		t.Errorf("staggered dates = %v", set.Dates)
	}
}

func TestFetcherCachesAndFallsBack(t *testing.T) {
	body := string(calendar(`UID:a
		DTSTART;VALUE=DATE:20250106`))
	var hits, fail atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "branch", URL: srv.URL + "/feed.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || string(first.Body) != body {
		t.Fatalf("first fetch = %+v", first)
	}

	second, err := f.FetchOne(ctx, src)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || string(second.Body) != body {
		t.Errorf("expected 304 to serve cached body, got FromCache=%v", second.FromCache)
	}

	fail.Store(1)
	third, err := f.FetchOne(ctx, src)
	if err != nil {
		t.Fatalf("fallback fetch: %v", err)
	}
	if !third.FromCache {
		t.Error("expected fallback to cached body")
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestFetchAllJoinsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	results, err := f.FetchAll(context.Background(), []Source{
		{ID: "missing", URL: srv.URL + "/missing.ics"},
		{ID: "empty"},
	})
	if len(results) != 0 {
		t.Errorf("results = %+v", results)
	}
	if err == nil || !strings.Contains(err.Error(), "missing") || !strings.Contains(err.Error(), "empty") {
		t.Errorf("err = %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/private/abc.ics?token=x": "https://example.com/...(redacted)",
		"not a url": "ics://...(redacted)",
	}
	for in, want := range tests {
		if got := redactURL(in); got != want {
			t.Errorf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}
