package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SweepResult counts the rows removed by a retention sweep.
type SweepResult struct {
	Invites   int64
	Reminders int64
}

type RetentionStore struct {
	db *sql.DB
}

func NewRetentionStore(db *sql.DB) *RetentionStore {
	return &RetentionStore{db: db}
}

// Sweep deletes invites that expired before now and sent reminders that fired
// before reminderCutoff, in one transaction.
func (s *RetentionStore) Sweep(ctx context.Context, now, reminderCutoff time.Time) (SweepResult, error) {
	var res SweepResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM invites WHERE expires_at < ?`, dbTime(now))
	if err != nil {
		return res, fmt.Errorf("delete expired invites: %w", err)
	}
	invites, _ := result.RowsAffected()

	result, err = tx.ExecContext(ctx,
		`DELETE FROM scheduled_reminders WHERE sent = 1 AND fire_at < ?`, dbTime(reminderCutoff))
	if err != nil {
		return res, fmt.Errorf("delete old reminders: %w", err)
	}
	reminders, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit sweep: %w", err)
	}
	res.Invites, res.Reminders = invites, reminders
	return res, nil
}
