package retention

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/homecal/internal/database"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/store"
)

func TestSweep(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 3, 30, 0, 0, time.UTC)

	invites := store.NewInviteStore(db)
	expired, err := invites.Create(ctx, "h1", "old@example.com", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	live, err := invites.Create(ctx, "h1", "new@example.com", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	reminders := store.NewReminderStore(db)
	batch := []model.Reminder{
		{ID: "old_sent", CalendarID: "c", EventID: "old", HouseholdID: "h1", ReminderMinutes: 10, FireAt: now.Add(-8 * 24 * time.Hour)},
		{ID: "old_unsent", CalendarID: "c", EventID: "old2", HouseholdID: "h1", ReminderMinutes: 10, FireAt: now.Add(-8 * 24 * time.Hour)},
		{ID: "recent_sent", CalendarID: "c", EventID: "new", HouseholdID: "h1", ReminderMinutes: 10, FireAt: now.Add(-2 * 24 * time.Hour)},
	}
	if err := reminders.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("upsert reminders: %v", err)
	}
	for _, id := range []string{"old_sent", "recent_sent"} {
		if err := reminders.MarkSent(ctx, id, "", &now); err != nil {
			t.Fatalf("mark sent: %v", err)
		}
	}

	res, err := NewJob(store.NewRetentionStore(db), 0, slog.Default()).Run(ctx, now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Invites != 1 || res.Reminders != 1 {
		t.Errorf("result = %+v, want 1 invite / 1 reminder", res)
	}

	if got, _ := invites.GetByID(ctx, expired.ID); got != nil {
		t.Error("expired invite should be deleted")
	}
	if got, _ := invites.GetByID(ctx, live.ID); got == nil {
		t.Error("live invite should be kept")
	}
	if got, _ := reminders.GetByID(ctx, "old_sent"); got != nil {
		t.Error("old sent reminder should be deleted")
	}
	for _, id := range []string{"old_unsent", "recent_sent"} {
		if got, _ := reminders.GetByID(ctx, id); got == nil {
			t.Errorf("%s should be kept", id)
		}
	}
}
