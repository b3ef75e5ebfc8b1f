package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDayOfIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	late := time.Date(2025, 1, 10, 23, 59, 59, 0, loc)
	early := time.Date(2025, 1, 10, 0, 0, 0, 0, loc)
	if DayOf(late) != DayOf(early) {
		t.Fatalf("DayOf should truncate to the calendar date: %v vs %v", DayOf(late), DayOf(early))
	}
	if got := DayOf(late).String(); got != "2025-01-10" {
		t.Fatalf("String() = %q", got)
	}
}

func TestDayCompareAndAdd(t *testing.T) {
	jan31 := NewDay(2025, time.January, 31)
	feb1 := jan31.AddDays(1)
	if feb1 != NewDay(2025, time.February, 1) {
		t.Fatalf("AddDays crossed month wrong: %v", feb1)
	}
	if !jan31.Before(feb1) || !feb1.After(jan31) || jan31.Compare(jan31) != 0 {
		t.Fatal("ordering broken across month boundary")
	}
	if !NewDay(2024, time.December, 31).Before(NewDay(2025, time.January, 1)) {
		t.Fatal("ordering broken across year boundary")
	}
	if !jan31.Between(jan31, feb1) || feb1.Between(jan31, jan31) {
		t.Fatal("Between should be inclusive")
	}
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(2024, time.February)
	if first != NewDay(2024, time.February, 1) || last != NewDay(2024, time.February, 29) {
		t.Fatalf("leap February bounds = %v..%v", first, last)
	}
	first, last = MonthBounds(2025, time.December)
	if first != NewDay(2025, time.December, 1) || last != NewDay(2025, time.December, 31) {
		t.Fatalf("December bounds = %v..%v", first, last)
	}
}

func TestDayJSONMapKey(t *testing.T) {
	m := map[Day]int{NewDay(2025, time.March, 4): 2}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"2025-03-04":2}` {
		t.Fatalf("got %s", b)
	}
	var back map[Day]int
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[NewDay(2025, time.March, 4)] != 2 {
		t.Fatalf("round trip lost key: %v", back)
	}
}

func TestNewDateSetSortsAndDedups(t *testing.T) {
	a := NewDay(2025, 1, 20)
	b := NewDay(2025, 1, 1)
	s := NewDateSet(a, b, a)
	if len(s.Dates) != 2 || s.Dates[0] != b || s.Dates[1] != a {
		t.Fatalf("NewDateSet = %v", s.Dates)
	}
	if !s.Contains(a) || s.Contains(NewDay(2025, 1, 2)) {
		t.Fatal("Contains mismatch")
	}
}

func TestBounds(t *testing.T) {
	d := func(day int) Day { return NewDay(2025, time.January, day) }

	tests := []struct {
		name      string
		ev        ScheduleEvent
		wantStart Day
		wantEnd   Day
		wantOK    bool
	}{
		{"regular", Regular("r", "c", "b", StatusPlanned, d(5), d(10)), d(5), d(10), true},
		{"single day", Regular("r", "c", "b", StatusPlanned, d(5), d(5)), d(5), d(5), true},
		{"inverted range", Regular("r", "c", "b", StatusPlanned, d(10), d(5)), Day{}, Day{}, false},
		{"staggered", Staggered("s", "c", "b", StatusPlanned, d(20), d(1), d(9)), d(1), d(20), true},
		{"staggered unsorted literal", ScheduleEvent{Span: DateSet{Dates: []Day{d(9), d(2), d(4)}}}, d(2), d(9), true},
		{"empty staggered", Staggered("s", "c", "b", StatusPlanned), Day{}, Day{}, false},
		{"unknown kind", ScheduleEvent{ID: "u"}, Day{}, Day{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e, ok := tt.ev.Bounds()
			if ok != tt.wantOK || s != tt.wantStart || e != tt.wantEnd {
				t.Errorf("Bounds() = %v, %v, %v; want %v, %v, %v", s, e, ok, tt.wantStart, tt.wantEnd, tt.wantOK)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if k := (ScheduleEvent{}).Kind(); k != KindUnknown {
		t.Errorf("nil span kind = %s", k)
	}
	if k := Regular("a", "", "", "", Day{}, Day{}).Kind(); k != KindRegular {
		t.Errorf("regular kind = %s", k)
	}
	if k := Staggered("a", "", "", "").Kind(); k != KindStaggered {
		t.Errorf("staggered kind = %s", k)
	}
}

func TestStatusKnown(t *testing.T) {
	for _, s := range []Status{StatusPlanned, StatusConfirmed, StatusCancelled, StatusFinished, StatusOngoing} {
		if !s.Known() {
			t.Errorf("%s should be known", s)
		}
	}
	if Status("postponed").Known() {
		t.Error("postponed should not be known")
	}
}
