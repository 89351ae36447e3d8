// Package birthday keeps each birthday's next occurrence and upcoming age current.
package birthday

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/homecal/internal/model"
)

// NextOccurrence returns the next date, at midnight in loc, on which the
// birthday falls, counting today, and the age turned on that date. Birth
// dates are calendar dates; only their year, month and day are read. A
// Feb 29 birthday lands on Mar 1 in non-leap years.
func NextOccurrence(birthDate, now time.Time, loc *time.Location) (time.Time, int) {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	next := time.Date(today.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, loc)
	if next.Before(today) {
		next = time.Date(today.Year()+1, birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, loc)
	}
	return next, next.Year() - birthDate.Year()
}

type Store interface {
	List(ctx context.Context) ([]model.Birthday, error)
	SetNextOccurrence(ctx context.Context, id string, next time.Time, age int) error
}

type Updater struct {
	store  Store
	loc    *time.Location
	logger *slog.Logger
}

func NewUpdater(store Store, loc *time.Location, logger *slog.Logger) *Updater {
	if loc == nil {
		loc = time.UTC
	}
	return &Updater{store: store, loc: loc, logger: logger}
}

// Run recomputes every birthday. It returns how many records were updated; a
// record that fails to write is logged and skipped.
func (u *Updater) Run(ctx context.Context, now time.Time) (int, error) {
	birthdays, err := u.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list birthdays: %w", err)
	}

	updated := 0
	for _, b := range birthdays {
		if b.BirthDate.IsZero() {
			continue
		}
		next, age := NextOccurrence(b.BirthDate, now, u.loc)
		if err := u.store.SetNextOccurrence(ctx, b.ID, next, age); err != nil {
			u.logger.Error("update birthday", "birthday_id", b.ID, "error", err)
			continue
		}
		updated++
	}

	u.logger.Info("birthdays recomputed", "total", len(birthdays), "updated", updated)
	return updated, nil
}
