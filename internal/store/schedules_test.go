package store

import (
	"context"
	"errors"
	"testing"

	"tmscal/internal/model"
)

func openTestStore(t *testing.T) (*Schedules, SQLDB) {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSchedules(db), db
}

func TestSaveAndGetRegular(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	in := model.Regular("r1", "Forklift Operation", "Cebu", model.StatusPlanned,
		model.NewDay(2025, 1, 6), model.NewDay(2025, 1, 10))
	in.Notes = "Bring **PPE**"

	id, err := s.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "r1" {
		t.Fatalf("id = %q", id)
	}

	got, err := s.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	r, ok := got.Span.(model.Range)
	if !ok {
		t.Fatalf("span = %T, want Range", got.Span)
	}
	if r.Start != in.Start() || r.End != in.End() {
		t.Errorf("range = %v..%v", r.Start, r.End)
	}
	if got.Course != in.Course || got.Branch != in.Branch || got.Notes != in.Notes {
		t.Errorf("got %+v", got)
	}
}

func TestSaveStaggeredAssignsID(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	in := model.Staggered("", "Welding NC II", "Davao", "",
		model.NewDay(2025, 2, 10), model.NewDay(2025, 2, 3), model.NewDay(2025, 2, 17))

	id, err := s.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.StatusPlanned {
		t.Errorf("status = %q, want planned", got.Status)
	}
	set, ok := got.Span.(model.DateSet)
	if !ok || len(set.Dates) != 3 {
		t.Fatalf("span = %#v", got.Span)
	}
	if set.Dates[0] != model.NewDay(2025, 2, 3) {
		t.Errorf("dates not sorted: %v", set.Dates)
	}
}

func TestSaveReplacesDates(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	first := model.Staggered("x", "Course", "", model.StatusPlanned,
		model.NewDay(2025, 3, 1), model.NewDay(2025, 3, 2))
	if _, err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := model.Regular("x", "Course", "", model.StatusPlanned,
		model.NewDay(2025, 4, 1), model.NewDay(2025, 4, 3))
	if _, err := s.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByID(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != model.KindRegular || got.Start() != model.NewDay(2025, 4, 1) {
		t.Errorf("got %+v", got)
	}
}

func TestSaveRejectsEventWithoutDates(t *testing.T) {
	s, _ := openTestStore(t)
	if _, err := s.Save(context.Background(), model.ScheduleEvent{ID: "empty", Course: "x"}); err == nil {
		t.Fatal("expected error for event with no span")
	}
}

func TestListLoadsUnknownTypeWithNilSpan(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, model.Regular("a", "A", "", model.StatusPlanned,
		model.NewDay(2025, 1, 1), model.NewDay(2025, 1, 2))); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO schedules (id, course, branch, status, schedule_type, notes, created_at)
		 VALUES ('b', 'B', '', 'planned', 'hybrid', '', '2025-01-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}

	events, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d", len(events))
	}
	if events[0].ID != "a" || events[0].Span == nil {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].ID != "b" || events[1].Span != nil || events[1].Kind() != model.KindUnknown {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestUpdateStatusAndDelete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, model.Regular("a", "A", "", model.StatusPlanned,
		model.NewDay(2025, 1, 1), model.NewDay(2025, 1, 2))); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateStatus(ctx, "a", model.StatusCancelled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err := s.GetByID(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("status = %q", got.Status)
	}

	if err := s.UpdateStatus(ctx, "missing", model.StatusFinished); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	events, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("events left after delete: %+v", events)
	}
}
