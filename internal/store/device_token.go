package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/homecal/internal/model"
)

type DeviceTokenStore struct {
	db *sql.DB
}

func NewDeviceTokenStore(db *sql.DB) *DeviceTokenStore {
	return &DeviceTokenStore{db: db}
}

const deviceTokenCols = `user_id, token, p256dh_key, auth_key, device_name, created_at`

// Register upserts a token. A token re-registered by another user moves to
// that user.
func (s *DeviceTokenStore) Register(ctx context.Context, t model.DeviceToken) (*model.DeviceToken, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_tokens (user_id, token, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key, device_name = excluded.device_name`,
		t.UserID, t.Token, t.P256dhKey, t.AuthKey, t.DeviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("register device token: %w", err)
	}
	return s.getByToken(ctx, t.Token)
}

func (s *DeviceTokenStore) getByToken(ctx context.Context, token string) (*model.DeviceToken, error) {
	var t model.DeviceToken
	err := s.db.QueryRowContext(ctx,
		`SELECT `+deviceTokenCols+` FROM device_tokens WHERE token = ?`, token,
	).Scan(&t.UserID, &t.Token, &t.P256dhKey, &t.AuthKey, &t.DeviceName, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device token: %w", err)
	}
	return &t, nil
}

func (s *DeviceTokenStore) ListByUser(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceTokenCols+` FROM device_tokens WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.DeviceToken
	for rows.Next() {
		var t model.DeviceToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.P256dhKey, &t.AuthKey, &t.DeviceName, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Delete removes a token regardless of owner. Used when the push service
// reports the subscription gone.
func (s *DeviceTokenStore) Delete(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

func (s *DeviceTokenStore) DeleteForUser(ctx context.Context, userID, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id = ? AND token = ?`, userID, token); err != nil {
		return fmt.Errorf("delete device token for user: %w", err)
	}
	return nil
}
