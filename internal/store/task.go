package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/google/uuid"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, household_id, title, due_date, is_completed, assignee_ids, last_reminder_key, created_at, updated_at`

func scanTask(sc scanner) (*model.Task, error) {
	var t model.Task
	var due sql.NullTime
	var completed int
	var assignees string
	var lastKey sql.NullString
	if err := sc.Scan(&t.ID, &t.HouseholdID, &t.Title, &due, &completed, &assignees, &lastKey, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.DueDate = timePtr(due)
	t.IsCompleted = completed != 0
	t.LastReminderKey = lastKey.String
	var err error
	if t.AssigneeIDs, err = decodeIDs(assignees); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TaskStore) Create(ctx context.Context, householdID, title string, dueDate *time.Time, assigneeIDs []string) (*model.Task, error) {
	assignees, err := encodeIDs(assigneeIDs)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, household_id, title, due_date, assignee_ids) VALUES (?, ?, ?, ?, ?)`,
		id, householdID, title, nullTime(dueDate), assignees,
	); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListDue returns up to limit incomplete tasks due at or before cutoff that
// have assignees and have not been reminded under dayKey yet.
func (s *TaskStore) ListDue(ctx context.Context, cutoff time.Time, dayKey string, limit int) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks
		 WHERE is_completed = 0 AND due_date IS NOT NULL AND due_date <= ?
		   AND assignee_ids NOT IN ('', '[]')
		   AND (last_reminder_key IS NULL OR last_reminder_key != ?)
		 ORDER BY due_date ASC LIMIT ?`,
		dbTime(cutoff), dayKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) SetLastReminderKey(ctx context.Context, id, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET last_reminder_key = ?, updated_at = ? WHERE id = ?`,
		key, dbTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set last reminder key: %w", err)
	}
	return nil
}

func (s *TaskStore) Complete(ctx context.Context, id, householdID string) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET is_completed = 1, updated_at = ? WHERE id = ? AND household_id = ?`,
		dbTime(time.Now()), id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return s.GetByID(ctx, id)
}
