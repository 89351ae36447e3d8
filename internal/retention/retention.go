// Package retention removes expired invites and old sent reminders.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/homecal/internal/store"
)

// DefaultReminderRetention is how long a sent reminder is kept after it fired.
const DefaultReminderRetention = 7 * 24 * time.Hour

type Sweeper interface {
	Sweep(ctx context.Context, now, reminderCutoff time.Time) (store.SweepResult, error)
}

type Job struct {
	store     Sweeper
	retention time.Duration
	logger    *slog.Logger
}

func NewJob(s Sweeper, retention time.Duration, logger *slog.Logger) *Job {
	if retention <= 0 {
		retention = DefaultReminderRetention
	}
	return &Job{store: s, retention: retention, logger: logger}
}

func (j *Job) Run(ctx context.Context, now time.Time) (store.SweepResult, error) {
	res, err := j.store.Sweep(ctx, now, now.Add(-j.retention))
	if err != nil {
		return res, fmt.Errorf("retention sweep: %w", err)
	}
	j.logger.Info("retention sweep complete", "invites", res.Invites, "reminders", res.Reminders)
	return res, nil
}
