package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

var ErrNotFound = errors.New("schedule not found")

// Schedules persists model.ScheduleEvent rows.
type Schedules struct {
	db  SQLDB
	now func() time.Time
}

// NewSchedules creates a schedule store over an initialized database.
func NewSchedules(db SQLDB) *Schedules {
	return &Schedules{db: db, now: time.Now}
}

type scheduleRow struct {
	id, course, branch, status, scheduleType, notes string
}

// List returns every schedule ordered by id. Rows whose schedule_type is not
// recognised, or whose regular range is missing, come back with a nil Span.
func (s *Schedules) List(ctx context.Context) ([]model.ScheduleEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course, branch, status, schedule_type, notes FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list schedules: %w", err)
	}
	var heads []scheduleRow
	for rows.Next() {
		var r scheduleRow
		if err := rows.Scan(&r.id, &r.course, &r.branch, &r.status, &r.scheduleType, &r.notes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan schedule: %w", err)
		}
		heads = append(heads, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	ranges, err := s.loadRanges(ctx)
	if err != nil {
		return nil, err
	}
	dates, err := s.loadDates(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.ScheduleEvent, 0, len(heads))
	for _, h := range heads {
		out = append(out, assemble(h, ranges, dates))
	}
	return out, nil
}

// GetByID returns one schedule.
func (s *Schedules) GetByID(ctx context.Context, id string) (model.ScheduleEvent, error) {
	var h scheduleRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course, branch, status, schedule_type, notes FROM schedules WHERE id = ?`, id,
	).Scan(&h.id, &h.course, &h.branch, &h.status, &h.scheduleType, &h.notes)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduleEvent{}, fmt.Errorf("store: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.ScheduleEvent{}, fmt.Errorf("store: get schedule %s: %w", id, err)
	}

	ranges, err := s.loadRanges(ctx, id)
	if err != nil {
		return model.ScheduleEvent{}, err
	}
	dates, err := s.loadDates(ctx, id)
	if err != nil {
		return model.ScheduleEvent{}, err
	}
	return assemble(h, ranges, dates), nil
}

// Save inserts or replaces a schedule and its dates in one transaction. An
// empty ID is filled with a new UUID; the stored ID is returned.
func (s *Schedules) Save(ctx context.Context, e model.ScheduleEvent) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = model.StatusPlanned
	}
	kind := e.Kind()
	if kind == model.KindUnknown {
		return "", fmt.Errorf("store: schedule %s has no dates", e.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schedules (id, course, branch, status, schedule_type, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   course=excluded.course, branch=excluded.branch, status=excluded.status,
		   schedule_type=excluded.schedule_type, notes=excluded.notes`,
		e.ID, e.Course, e.Branch, string(e.Status), string(kind), e.Notes,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("store: upsert schedule %s: %w", e.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_ranges WHERE schedule_id = ?`, e.ID); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_dates WHERE schedule_id = ?`, e.ID); err != nil {
		return "", err
	}

	switch span := e.Span.(type) {
	case model.Range:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_ranges (schedule_id, start_date, end_date) VALUES (?, ?, ?)`,
			e.ID, span.Start.String(), span.End.String()); err != nil {
			return "", fmt.Errorf("store: insert range %s: %w", e.ID, err)
		}
	case model.DateSet:
		for _, d := range span.Dates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schedule_dates (schedule_id, date) VALUES (?, ?)`, e.ID, d.String()); err != nil {
				return "", fmt.Errorf("store: insert date %s: %w", e.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit %s: %w", e.ID, err)
	}
	return e.ID, nil
}

// UpdateStatus sets the stored status of one schedule.
func (s *Schedules) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE schedules SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("store: update status %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a schedule and its dates.
func (s *Schedules) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

func (s *Schedules) loadRanges(ctx context.Context, onlyID ...string) (map[string]model.Range, error) {
	query := `SELECT schedule_id, start_date, end_date FROM schedule_ranges`
	var args []any
	if len(onlyID) > 0 {
		query += ` WHERE schedule_id = ?`
		args = append(args, onlyID[0])
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: load ranges: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Range)
	for rows.Next() {
		var id, startStr, endStr string
		if err := rows.Scan(&id, &startStr, &endStr); err != nil {
			return nil, err
		}
		start, errStart := model.ParseDay(startStr)
		end, errEnd := model.ParseDay(endStr)
		if err := errors.Join(errStart, errEnd); err != nil {
			appLog.Error("store: skipping malformed range", err, "id", id)
			continue
		}
		// The back office keeps one range per regular schedule; first wins.
		if _, dup := out[id]; !dup {
			out[id] = model.Range{Start: start, End: end}
		}
	}
	return out, rows.Err()
}

func (s *Schedules) loadDates(ctx context.Context, onlyID ...string) (map[string][]model.Day, error) {
	query := `SELECT schedule_id, date FROM schedule_dates`
	var args []any
	if len(onlyID) > 0 {
		query += ` WHERE schedule_id = ?`
		args = append(args, onlyID[0])
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: load dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Day)
	for rows.Next() {
		var id, dateStr string
		if err := rows.Scan(&id, &dateStr); err != nil {
			return nil, err
		}
		d, err := model.ParseDay(dateStr)
		if err != nil {
			appLog.Error("store: skipping malformed date", err, "id", id)
			continue
		}
		out[id] = append(out[id], d)
	}
	return out, rows.Err()
}

func assemble(h scheduleRow, ranges map[string]model.Range, dates map[string][]model.Day) model.ScheduleEvent {
	e := model.ScheduleEvent{
		ID:     h.id,
		Course: h.course,
		Branch: h.branch,
		Status: model.Status(h.status),
		Notes:  h.notes,
	}
	switch model.Kind(h.scheduleType) {
	case model.KindRegular:
		if r, ok := ranges[h.id]; ok {
			e.Span = r
		}
	case model.KindStaggered:
		e.Span = model.NewDateSet(dates[h.id]...)
	}
	return e
}
