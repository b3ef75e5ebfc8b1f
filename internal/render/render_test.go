package render

import (
	"strings"
	"testing"
	"time"

	"tmscal/internal/config"
	"tmscal/internal/layout"
	"tmscal/internal/model"
)

func sample() []model.ScheduleEvent {
	d := func(n int) model.Day { return model.NewDay(2025, 1, n) }
	return []model.ScheduleEvent{
		model.Regular("a", "Forklift Operation and Safety", "Cebu", model.StatusPlanned, d(6), d(10)),
		model.Regular("b", "Welding", "Davao", model.StatusCancelled, d(8), d(9)),
		model.Staggered("c", "First Aid", "", model.StatusPlanned, d(3), d(17)),
	}
}

func TestMonth(t *testing.T) {
	now := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	m := layout.Compute(sample(), 2025, time.January, now)

	out := Month(m, time.Sunday, model.DayOf(now), DefaultStyles(config.DefaultPalette()))

	for _, want := range []string{"January 2025", "Sun", "Sat", "Welding", "First Aid", "Forklift", "31"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Forklift Operation and Safety") {
		t.Error("long course names should be truncated to the cell")
	}
	if !strings.Contains(out, "─") {
		t.Error("continuing days should draw a bar")
	}
}

func TestMonthEmpty(t *testing.T) {
	m := layout.Compute(nil, 2025, time.February, time.Now())
	out := Month(m, time.Monday, model.Day{}, DefaultStyles(config.DefaultPalette()))
	if !strings.Contains(out, "February 2025") || !strings.Contains(out, "Mon") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestYear(t *testing.T) {
	rows := layout.YearView(sample(), 2025, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	out := Year(rows, 2025, DefaultStyles(config.DefaultPalette()))

	for _, want := range []string{"Training calendar 2025", "Course", "Jan", "Dec", "Welding", "6 - 10", "3, 17"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
