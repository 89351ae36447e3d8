package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/google/uuid"
)

type InviteStore struct {
	db *sql.DB
}

func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func (s *InviteStore) Create(ctx context.Context, householdID, email string, expiresAt time.Time) (*model.Invite, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO invites (id, household_id, email, expires_at) VALUES (?, ?, ?, ?)`,
		id, householdID, email, dbTime(expiresAt),
	); err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *InviteStore) GetByID(ctx context.Context, id string) (*model.Invite, error) {
	var inv model.Invite
	err := s.db.QueryRowContext(ctx,
		`SELECT id, household_id, email, expires_at, created_at FROM invites WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.HouseholdID, &inv.Email, &inv.ExpiresAt, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	return &inv, nil
}
