// Package task sends the daily reminder for tasks that are past due.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/push"
)

// DefaultBatchSize caps how many due tasks one run handles.
const DefaultBatchSize = 20

type Store interface {
	ListDue(ctx context.Context, cutoff time.Time, dayKey string, limit int) ([]model.Task, error)
	SetLastReminderKey(ctx context.Context, id, key string) error
}

type TokenResolver interface {
	Resolve(ctx context.Context, userIDs []string) ([]model.DeviceToken, error)
}

type Notifier interface {
	SendMulticast(ctx context.Context, tokens []model.DeviceToken, msg push.Message) (*push.BatchResponse, error)
}

type TokenDeleter interface {
	Delete(ctx context.Context, token string) error
}

// RunResult counts the outcomes of one run.
type RunResult struct {
	Due      int
	Notified int
	NoTokens int
	Failed   int
}

// DueReminder notifies assignees of overdue tasks at most once per calendar
// day, tracked through each task's last reminder key. Tasks without assignees
// or already handled today are never fetched.
type DueReminder struct {
	tasks     Store
	resolver  TokenResolver
	notifier  Notifier
	tokens    TokenDeleter
	loc       *time.Location
	batchSize int
	logger    *slog.Logger
}

func NewDueReminder(tasks Store, resolver TokenResolver, notifier Notifier, tokens TokenDeleter,
	loc *time.Location, batchSize int, logger *slog.Logger) *DueReminder {
	if loc == nil {
		loc = time.UTC
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DueReminder{
		tasks:     tasks,
		resolver:  resolver,
		notifier:  notifier,
		tokens:    tokens,
		loc:       loc,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run processes one batch of tasks due on or before the start of now's day.
func (d *DueReminder) Run(ctx context.Context, now time.Time) (RunResult, error) {
	local := now.In(d.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.loc)
	todayKey := model.DateKey(today)

	due, err := d.tasks.ListDue(ctx, today, todayKey, d.batchSize)
	if err != nil {
		return RunResult{}, fmt.Errorf("list due tasks: %w", err)
	}

	res := RunResult{Due: len(due)}
	for _, t := range due {
		tokens, err := d.resolver.Resolve(ctx, t.AssigneeIDs)
		if err != nil {
			d.logger.Error("resolve task tokens", "task_id", t.ID, "error", err)
			res.Failed++
			continue
		}
		if len(tokens) == 0 {
			// Nobody to notify today; take the task out of today's batches.
			if err := d.tasks.SetLastReminderKey(ctx, t.ID, todayKey); err != nil {
				d.logger.Error("store task reminder key", "task_id", t.ID, "error", err)
			}
			res.NoTokens++
			continue
		}

		if err := d.notify(ctx, t, tokens); err != nil {
			d.logger.Warn("task reminder send failed", "task_id", t.ID, "error", err)
			res.Failed++
			continue
		}
		if err := d.tasks.SetLastReminderKey(ctx, t.ID, todayKey); err != nil {
			d.logger.Error("store task reminder key", "task_id", t.ID, "error", err)
			res.Failed++
			continue
		}
		res.Notified++
	}

	if res.Due > 0 {
		d.logger.Info("task reminder run complete",
			"date", todayKey,
			"due", res.Due,
			"notified", res.Notified,
			"no_tokens", res.NoTokens,
			"failed", res.Failed,
		)
	}
	return res, nil
}

func (d *DueReminder) notify(ctx context.Context, t model.Task, tokens []model.DeviceToken) error {
	body := fmt.Sprintf("%s is overdue", t.Title)
	if t.DueDate != nil {
		body = fmt.Sprintf("%s was due on %s", t.Title, t.DueDate.In(d.loc).Format("Jan 2, 2006"))
	}

	resp, err := d.notifier.SendMulticast(ctx, tokens, push.Message{
		Title: "Task due",
		Body:  body,
		Data: map[string]string{
			"taskId":      t.ID,
			"householdId": t.HouseholdID,
		},
		Tag: "task-" + t.ID,
	})
	if err != nil {
		return err
	}
	for _, tok := range resp.ExpiredTokens() {
		if err := d.tokens.Delete(ctx, tok); err != nil {
			d.logger.Warn("delete expired token", "error", err)
		}
	}
	if resp.SuccessCount == 0 {
		return fmt.Errorf("all %d sends failed", resp.FailureCount)
	}
	return nil
}
