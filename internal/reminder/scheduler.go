// Package reminder schedules event reminders and dispatches the ones that
// have come due.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/model"
)

// EventGetter looks up a single event; a missing event is (nil, nil).
type EventGetter interface {
	GetEvent(ctx context.Context, calendarID, eventID string) (*model.Event, error)
}

// ReminderWriter persists a set of reminders atomically.
type ReminderWriter interface {
	UpsertBatch(ctx context.Context, reminders []model.Reminder) error
}

// Scheduler turns an event and a list of offsets into reminder records.
type Scheduler struct {
	events    EventGetter
	reminders ReminderWriter
	logger    *slog.Logger
}

func NewScheduler(events EventGetter, reminders ReminderWriter, logger *slog.Logger) *Scheduler {
	return &Scheduler{events: events, reminders: reminders, logger: logger}
}

// Schedule writes one unsent reminder per distinct offset, firing offset
// minutes before the event starts. Calling it again with the same event and
// offsets overwrites the existing reminders.
func (s *Scheduler) Schedule(ctx context.Context, calendarID, eventID string, minutes []int) ([]model.Reminder, error) {
	if calendarID == "" || eventID == "" {
		return nil, apperr.Invalid("calendarId and eventId are required")
	}
	offsets, err := normalizeOffsets(minutes)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, calendarID, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load event", err)
	}
	if event == nil {
		return nil, apperr.Missing("event %s not found", eventID)
	}

	reminders := make([]model.Reminder, 0, len(offsets))
	for _, m := range offsets {
		reminders = append(reminders, model.Reminder{
			ID:              model.ReminderID(event.ID, m),
			CalendarID:      calendarID,
			EventID:         event.ID,
			HouseholdID:     event.HouseholdID,
			ReminderMinutes: m,
			FireAt:          event.Start.Add(-time.Duration(m) * time.Minute),
		})
	}

	if err := s.reminders.UpsertBatch(ctx, reminders); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "save reminders", err)
	}

	s.logger.Info("reminders scheduled", "event_id", event.ID, "count", len(reminders))
	return reminders, nil
}

func normalizeOffsets(minutes []int) ([]int, error) {
	if len(minutes) == 0 {
		return nil, apperr.Invalid("reminderMinutes must not be empty")
	}
	seen := make(map[int]struct{}, len(minutes))
	out := make([]int, 0, len(minutes))
	for _, m := range minutes {
		if m <= 0 {
			return nil, apperr.Invalid("reminderMinutes must be positive, got %d", m)
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}
