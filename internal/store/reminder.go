package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/homecal/internal/model"
)

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderCols = `id, calendar_id, event_id, household_id, reminder_minutes, fire_at, sent, reason, sent_at, created_at, updated_at`

func scanReminder(sc scanner) (*model.Reminder, error) {
	var r model.Reminder
	var sent int
	var reason sql.NullString
	var sentAt sql.NullTime
	err := sc.Scan(&r.ID, &r.CalendarID, &r.EventID, &r.HouseholdID, &r.ReminderMinutes, &r.FireAt,
		&sent, &reason, &sentAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.FireAt = r.FireAt.UTC()
	r.Sent = sent != 0
	r.Reason = reason.String
	r.SentAt = timePtr(sentAt)
	return &r, nil
}

// UpsertBatch writes all reminders in a single transaction. An existing
// reminder with the same ID is overwritten and returns to the unsent state;
// its created_at is kept.
func (s *ReminderStore) UpsertBatch(ctx context.Context, reminders []model.Reminder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := dbTime(time.Now())
	for _, r := range reminders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scheduled_reminders (id, calendar_id, event_id, household_id, reminder_minutes, fire_at, sent, reason, sent_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   calendar_id = excluded.calendar_id,
			   event_id = excluded.event_id,
			   household_id = excluded.household_id,
			   reminder_minutes = excluded.reminder_minutes,
			   fire_at = excluded.fire_at,
			   sent = 0,
			   reason = NULL,
			   sent_at = NULL,
			   updated_at = excluded.updated_at`,
			r.ID, r.CalendarID, r.EventID, r.HouseholdID, r.ReminderMinutes, dbTime(r.FireAt), now, now,
		); err != nil {
			return fmt.Errorf("upsert reminder %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reminders: %w", err)
	}
	return nil
}

func (s *ReminderStore) GetByID(ctx context.Context, id string) (*model.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderCols+` FROM scheduled_reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderStore) ListByEvent(ctx context.Context, eventID string) ([]model.Reminder, error) {
	return s.list(ctx,
		`SELECT `+reminderCols+` FROM scheduled_reminders WHERE event_id = ? ORDER BY reminder_minutes ASC`, eventID)
}

// ListDue returns up to limit unsent reminders whose fire time is at or before now.
func (s *ReminderStore) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	return s.list(ctx,
		`SELECT `+reminderCols+` FROM scheduled_reminders WHERE sent = 0 AND fire_at <= ? ORDER BY fire_at ASC LIMIT ?`,
		dbTime(now), limit)
}

func (s *ReminderStore) list(ctx context.Context, query string, args ...any) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// MarkSent flips a reminder to its terminal sent state. reason is empty for a
// delivered reminder; sentAt is nil when no send was attempted.
func (s *ReminderStore) MarkSent(ctx context.Context, id, reason string, sentAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_reminders SET sent = 1, reason = ?, sent_at = ?, updated_at = ? WHERE id = ?`,
		nullString(reason), nullTime(sentAt), dbTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
