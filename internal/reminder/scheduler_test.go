package reminder

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/homecal/internal/apperr"
	"github.com/dukerupert/homecal/internal/database"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/store"
)

type fixture struct {
	calendars *store.CalendarStore
	reminders *store.ReminderStore
	calendar  *model.Calendar
}

func setupDB(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		calendars: store.NewCalendarStore(db),
		reminders: store.NewReminderStore(db),
	}
	f.calendar, err = f.calendars.CreateCalendar(context.Background(), "h1", "Family")
	if err != nil {
		t.Fatalf("create calendar: %v", err)
	}
	return f
}

func (f *fixture) event(t *testing.T, title string, start time.Time, participants ...string) *model.Event {
	t.Helper()
	e, err := f.calendars.CreateEvent(context.Background(), model.Event{
		CalendarID:     f.calendar.ID,
		HouseholdID:    f.calendar.HouseholdID,
		Title:          title,
		Start:          start,
		End:            start.Add(time.Hour),
		ParticipantIDs: participants,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func TestScheduleComputesFireTimes(t *testing.T) {
	f := setupDB(t)
	start := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	e := f.event(t, "Dentist", start)
	s := NewScheduler(f.calendars, f.reminders, slog.Default())

	got, err := s.Schedule(context.Background(), f.calendar.ID, e.ID, []int{30, 1440})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	stored, err := f.reminders.ListByEvent(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored = %d, want 2", len(stored))
	}
	want := map[string]time.Time{
		e.ID + "_30":   start.Add(-30 * time.Minute),
		e.ID + "_1440": start.Add(-24 * time.Hour),
	}
	for _, r := range stored {
		fire, ok := want[r.ID]
		if !ok {
			t.Errorf("unexpected reminder id %q", r.ID)
			continue
		}
		if !r.FireAt.Equal(fire) {
			t.Errorf("%s fire_at = %v, want %v", r.ID, r.FireAt, fire)
		}
		if r.Sent {
			t.Errorf("%s sent = true, want false", r.ID)
		}
		if r.HouseholdID != "h1" {
			t.Errorf("%s household = %q, want %q", r.ID, r.HouseholdID, "h1")
		}
	}
}

func TestScheduleIdempotent(t *testing.T) {
	f := setupDB(t)
	e := f.event(t, "Practice", time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	s := NewScheduler(f.calendars, f.reminders, slog.Default())
	ctx := context.Background()

	if _, err := s.Schedule(ctx, f.calendar.ID, e.ID, []int{15, 60}); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	now := time.Now()
	if err := f.reminders.MarkSent(ctx, model.ReminderID(e.ID, 15), "", &now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if _, err := s.Schedule(ctx, f.calendar.ID, e.ID, []int{15, 60, 15}); err != nil {
		t.Fatalf("second schedule: %v", err)
	}

	stored, err := f.reminders.ListByEvent(ctx, e.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored = %d, want 2", len(stored))
	}
	for _, r := range stored {
		if r.Sent || r.SentAt != nil {
			t.Errorf("%s should be reset to unsent, got sent=%v sent_at=%v", r.ID, r.Sent, r.SentAt)
		}
	}
}

func TestScheduleMissingEvent(t *testing.T) {
	f := setupDB(t)
	s := NewScheduler(f.calendars, f.reminders, slog.Default())

	_, err := s.Schedule(context.Background(), f.calendar.ID, "nope", []int{10})
	if apperr.CodeOf(err) != apperr.NotFound {
		t.Errorf("code = %q, want %q", apperr.CodeOf(err), apperr.NotFound)
	}

	stored, _ := f.reminders.ListByEvent(context.Background(), "nope")
	if len(stored) != 0 {
		t.Errorf("stored = %d, want 0", len(stored))
	}
}

func TestScheduleInvalidArguments(t *testing.T) {
	f := setupDB(t)
	e := f.event(t, "Practice", time.Now().Add(time.Hour))
	s := NewScheduler(f.calendars, f.reminders, slog.Default())

	tests := []struct {
		name     string
		calendar string
		event    string
		minutes  []int
	}{
		{"empty offsets", f.calendar.ID, e.ID, nil},
		{"zero offset", f.calendar.ID, e.ID, []int{10, 0}},
		{"negative offset", f.calendar.ID, e.ID, []int{-5}},
		{"missing event id", f.calendar.ID, "", []int{10}},
		{"missing calendar id", "", e.ID, []int{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Schedule(context.Background(), tt.calendar, tt.event, tt.minutes)
			if apperr.CodeOf(err) != apperr.InvalidArgument {
				t.Errorf("code = %q, want %q", apperr.CodeOf(err), apperr.InvalidArgument)
			}
		})
	}

	stored, _ := f.reminders.ListByEvent(context.Background(), e.ID)
	if len(stored) != 0 {
		t.Errorf("stored = %d, want 0 after rejected calls", len(stored))
	}
}

type failingWriter struct{}

func (failingWriter) UpsertBatch(context.Context, []model.Reminder) error {
	return errors.New("disk full")
}

func TestScheduleStoreFailure(t *testing.T) {
	f := setupDB(t)
	e := f.event(t, "Practice", time.Now().Add(time.Hour))
	s := NewScheduler(f.calendars, failingWriter{}, slog.Default())

	_, err := s.Schedule(context.Background(), f.calendar.ID, e.ID, []int{10})
	if apperr.CodeOf(err) != apperr.Internal {
		t.Errorf("code = %q, want %q", apperr.CodeOf(err), apperr.Internal)
	}
}
