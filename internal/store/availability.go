package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/google/uuid"
)

type AvailabilityStore struct {
	db *sql.DB
}

func NewAvailabilityStore(db *sql.DB) *AvailabilityStore {
	return &AvailabilityStore{db: db}
}

const availabilityCols = `id, user_id, household_id, date_key, slots, updated_at`

func scanAvailability(sc scanner) (*model.AvailabilityRecord, error) {
	var r model.AvailabilityRecord
	var slots string
	if err := sc.Scan(&r.ID, &r.UserID, &r.HouseholdID, &r.DateKey, &slots, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Slots = []model.Slot{}
	if slots != "" {
		if err := json.Unmarshal([]byte(slots), &r.Slots); err != nil {
			return nil, fmt.Errorf("decode slots: %w", err)
		}
	}
	return &r, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAvailability(ctx context.Context, q queryRower, userID, householdID, dateKey string) (*model.AvailabilityRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+availabilityCols+` FROM availabilities WHERE user_id = ? AND household_id = ? AND date_key = ?`,
		userID, householdID, dateKey)
	r, err := scanAvailability(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return r, nil
}

func (s *AvailabilityStore) Get(ctx context.Context, userID, householdID, dateKey string) (*model.AvailabilityRecord, error) {
	return getAvailability(ctx, s.db, userID, householdID, dateKey)
}

// Put creates or replaces a user's record for a day and returns the record
// states before and after the write.
func (s *AvailabilityStore) Put(ctx context.Context, rec model.AvailabilityRecord) (before, after *model.AvailabilityRecord, err error) {
	if rec.Slots == nil {
		rec.Slots = []model.Slot{}
	}
	slots, err := encodeJSON(rec.Slots)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	before, err = getAvailability(ctx, tx, rec.UserID, rec.HouseholdID, rec.DateKey)
	if err != nil {
		return nil, nil, err
	}

	id := uuid.NewString()
	if before != nil {
		id = before.ID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO availabilities (id, user_id, household_id, date_key, slots, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, household_id, date_key) DO UPDATE SET slots = excluded.slots, updated_at = excluded.updated_at`,
		id, rec.UserID, rec.HouseholdID, rec.DateKey, slots, dbTime(time.Now()),
	); err != nil {
		return nil, nil, fmt.Errorf("put availability: %w", err)
	}

	after, err = getAvailability(ctx, tx, rec.UserID, rec.HouseholdID, rec.DateKey)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit availability: %w", err)
	}
	return before, after, nil
}

// Delete removes a user's record for a day and returns the deleted state, or
// nil if nothing was stored.
func (s *AvailabilityStore) Delete(ctx context.Context, userID, householdID, dateKey string) (*model.AvailabilityRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	before, err := getAvailability(ctx, tx, userID, householdID, dateKey)
	if err != nil || before == nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM availabilities WHERE id = ?`, before.ID); err != nil {
		return nil, fmt.Errorf("delete availability: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit availability delete: %w", err)
	}
	return before, nil
}

// ListByDay returns every record for a household and day.
func (s *AvailabilityStore) ListByDay(ctx context.Context, householdID, dateKey string) ([]model.AvailabilityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+availabilityCols+` FROM availabilities WHERE household_id = ? AND date_key = ?`,
		householdID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	var records []model.AvailabilityRecord
	for rows.Next() {
		r, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// --- Summary methods ---

func (s *AvailabilityStore) GetSummary(ctx context.Context, householdID, dateKey string) (*model.AvailabilitySummary, error) {
	var sum model.AvailabilitySummary
	var earliest, latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT household_id, date_key, available_members, earliest_start_minutes, latest_end_minutes, updated_at
		 FROM availability_summaries WHERE id = ?`,
		model.SummaryID(householdID, dateKey),
	).Scan(&sum.HouseholdID, &sum.DateKey, &sum.AvailableMembers, &earliest, &latest, &sum.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get availability summary: %w", err)
	}
	sum.EarliestStartMinutes = intPtr(earliest)
	sum.LatestEndMinutes = intPtr(latest)
	return &sum, nil
}

// PutSummary upserts a summary. Nil bounds are stored as NULL, clearing any
// previous value.
func (s *AvailabilityStore) PutSummary(ctx context.Context, sum model.AvailabilitySummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO availability_summaries (id, household_id, date_key, available_members, earliest_start_minutes, latest_end_minutes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   available_members = excluded.available_members,
		   earliest_start_minutes = excluded.earliest_start_minutes,
		   latest_end_minutes = excluded.latest_end_minutes,
		   updated_at = excluded.updated_at`,
		model.SummaryID(sum.HouseholdID, sum.DateKey), sum.HouseholdID, sum.DateKey, sum.AvailableMembers,
		nullInt(sum.EarliestStartMinutes), nullInt(sum.LatestEndMinutes), dbTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put availability summary: %w", err)
	}
	return nil
}

// DeleteSummary removes a summary. Deleting a missing summary is not an error.
func (s *AvailabilityStore) DeleteSummary(ctx context.Context, householdID, dateKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM availability_summaries WHERE id = ?`, model.SummaryID(householdID, dateKey))
	if err != nil {
		return fmt.Errorf("delete availability summary: %w", err)
	}
	return nil
}
