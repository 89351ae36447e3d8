package birthday

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/homecal/internal/database"
	"github.com/dukerupert/homecal/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		birth    time.Time
		now      time.Time
		wantNext time.Time
		wantAge  int
	}{
		{"later this year", day(1990, 6, 1), day(2024, 3, 15), day(2024, 6, 1), 34},
		{"already passed", day(1990, 1, 10), day(2024, 3, 15), day(2025, 1, 10), 35},
		{"today counts", day(2010, 3, 15), time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC), day(2024, 3, 15), 14},
		{"leap day in leap year", day(2000, 2, 29), day(2024, 1, 1), day(2024, 2, 29), 24},
		{"leap day in common year", day(2000, 2, 29), day(2023, 1, 1), day(2023, 3, 1), 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, age := NextOccurrence(tt.birth, tt.now, time.UTC)
			if !next.Equal(tt.wantNext) {
				t.Errorf("next = %v, want %v", next, tt.wantNext)
			}
			if age != tt.wantAge {
				t.Errorf("age = %d, want %d", age, tt.wantAge)
			}
		})
	}
}

func TestNextOccurrenceUsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 20:00 UTC on Mar 14 is already Mar 15 in Tokyo, so a Mar 14 birthday has passed.
	next, age := NextOccurrence(day(2000, 3, 14), time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC), tokyo)
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, tokyo)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if age != 25 {
		t.Errorf("age = %d, want 25", age)
	}
}

func TestUpdaterRun(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	bs := store.NewBirthdayStore(db)
	ctx := context.Background()

	b, err := bs.Create(ctx, "h1", "Grandma", day(1950, 8, 20))
	if err != nil {
		t.Fatalf("create birthday: %v", err)
	}

	n, err := NewUpdater(bs, time.UTC, slog.Default()).Run(ctx, day(2024, 3, 15))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 1 {
		t.Errorf("updated = %d, want 1", n)
	}

	got, err := bs.GetByID(ctx, b.ID)
	if err != nil || got == nil {
		t.Fatalf("get birthday: %v", err)
	}
	if got.NextOccurrence == nil || !got.NextOccurrence.Equal(day(2024, 8, 20)) {
		t.Errorf("next occurrence = %v, want 2024-08-20", got.NextOccurrence)
	}
	if got.UpcomingAge == nil || *got.UpcomingAge != 74 {
		t.Errorf("upcoming age = %v, want 74", got.UpcomingAge)
	}
}
