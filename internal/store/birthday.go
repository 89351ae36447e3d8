package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/google/uuid"
)

type BirthdayStore struct {
	db *sql.DB
}

func NewBirthdayStore(db *sql.DB) *BirthdayStore {
	return &BirthdayStore{db: db}
}

const birthdayCols = `id, household_id, name, birth_date, next_occurrence, upcoming_age, updated_at`

func scanBirthday(sc scanner) (*model.Birthday, error) {
	var b model.Birthday
	var next sql.NullTime
	var age sql.NullInt64
	if err := sc.Scan(&b.ID, &b.HouseholdID, &b.Name, &b.BirthDate, &next, &age, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.BirthDate = b.BirthDate.UTC()
	b.NextOccurrence = timePtr(next)
	b.UpcomingAge = intPtr(age)
	return &b, nil
}

func (s *BirthdayStore) Create(ctx context.Context, householdID, name string, birthDate time.Time) (*model.Birthday, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO birthdays (id, household_id, name, birth_date) VALUES (?, ?, ?, ?)`,
		id, householdID, name, dbTime(birthDate),
	); err != nil {
		return nil, fmt.Errorf("insert birthday: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BirthdayStore) GetByID(ctx context.Context, id string) (*model.Birthday, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+birthdayCols+` FROM birthdays WHERE id = ?`, id)
	b, err := scanBirthday(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get birthday: %w", err)
	}
	return b, nil
}

func (s *BirthdayStore) List(ctx context.Context) ([]model.Birthday, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+birthdayCols+` FROM birthdays ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list birthdays: %w", err)
	}
	defer rows.Close()

	var birthdays []model.Birthday
	for rows.Next() {
		b, err := scanBirthday(rows)
		if err != nil {
			return nil, fmt.Errorf("scan birthday: %w", err)
		}
		birthdays = append(birthdays, *b)
	}
	return birthdays, rows.Err()
}

func (s *BirthdayStore) SetNextOccurrence(ctx context.Context, id string, next time.Time, age int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE birthdays SET next_occurrence = ?, upcoming_age = ?, updated_at = ? WHERE id = ?`,
		dbTime(next), age, dbTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set next occurrence: %w", err)
	}
	return nil
}
