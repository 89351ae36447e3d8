package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/google/uuid"
)

type CalendarStore struct {
	db *sql.DB
}

func NewCalendarStore(db *sql.DB) *CalendarStore {
	return &CalendarStore{db: db}
}

const eventCols = `id, calendar_id, household_id, title, start_time, end_time, location, notes,
	participant_ids, category, visibility, recurrence_rule, created_at, updated_at`

func scanEvent(sc scanner) (*model.Event, error) {
	var e model.Event
	var participants string
	err := sc.Scan(&e.ID, &e.CalendarID, &e.HouseholdID, &e.Title, &e.Start, &e.End, &e.Location, &e.Notes,
		&participants, &e.Category, &e.Visibility, &e.RecurrenceRule, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	if e.ParticipantIDs, err = decodeIDs(participants); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *CalendarStore) CreateCalendar(ctx context.Context, householdID, name string) (*model.Calendar, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO calendars (id, household_id, name) VALUES (?, ?, ?)`,
		id, householdID, name,
	); err != nil {
		return nil, fmt.Errorf("insert calendar: %w", err)
	}
	return s.GetCalendar(ctx, id)
}

func (s *CalendarStore) GetCalendar(ctx context.Context, id string) (*model.Calendar, error) {
	var c model.Calendar
	err := s.db.QueryRowContext(ctx,
		`SELECT id, household_id, name, created_at FROM calendars WHERE id = ?`, id,
	).Scan(&c.ID, &c.HouseholdID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	return &c, nil
}

// CreateEvents inserts all events in one transaction, assigning IDs to events
// that have none. Either every event is written or none is.
func (s *CalendarStore) CreateEvents(ctx context.Context, events []model.Event) ([]model.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := dbTime(time.Now())
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.ParticipantIDs == nil {
			e.ParticipantIDs = []string{}
		}
		participants, err := encodeIDs(e.ParticipantIDs)
		if err != nil {
			return nil, err
		}
		if e.Visibility == "" {
			e.Visibility = "household"
		}
		e.Start, e.End = dbTime(e.Start), dbTime(e.End)
		e.CreatedAt, e.UpdatedAt = now, now

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (`+eventCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.CalendarID, e.HouseholdID, e.Title, e.Start, e.End, e.Location, e.Notes,
			participants, e.Category, e.Visibility, e.RecurrenceRule, e.CreatedAt, e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		out = append(out, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit events: %w", err)
	}
	return out, nil
}

func (s *CalendarStore) CreateEvent(ctx context.Context, e model.Event) (*model.Event, error) {
	created, err := s.CreateEvents(ctx, []model.Event{e})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// GetEvent returns the event, or nil if it does not exist in the calendar.
func (s *CalendarStore) GetEvent(ctx context.Context, calendarID, eventID string) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE calendar_id = ? AND id = ?`, calendarID, eventID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns up to limit events of a calendar ordered by start.
func (s *CalendarStore) ListEvents(ctx context.Context, calendarID string, limit int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE calendar_id = ? ORDER BY start_time ASC LIMIT ?`,
		calendarID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *CalendarStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE calendar_id = ? AND id = ?`, calendarID, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
