package availability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukerupert/homecal/internal/database"
	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/store"
	"github.com/dukerupert/homecal/internal/websocket"
)

func intVal(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name        string
		records     []model.AvailabilityRecord
		wantNil     bool
		wantMembers int
		wantStart   any
		wantEnd     any
	}{
		{
			name:    "no records",
			wantNil: true,
		},
		{
			name: "two members",
			records: []model.AvailabilityRecord{
				{UserID: "a", Slots: []model.Slot{{StartMinutes: 60, EndMinutes: 120}}},
				{UserID: "b", Slots: []model.Slot{{StartMinutes: 30, EndMinutes: 90}}},
			},
			wantMembers: 2,
			wantStart:   30,
			wantEnd:     120,
		},
		{
			name: "only empty slots",
			records: []model.AvailabilityRecord{
				{UserID: "a", Slots: []model.Slot{}},
			},
			wantMembers: 0,
		},
		{
			name: "mixed empty and filled",
			records: []model.AvailabilityRecord{
				{UserID: "a"},
				{UserID: "b", Slots: []model.Slot{{StartMinutes: 480, EndMinutes: 540}, {StartMinutes: 1020, EndMinutes: 1200}}},
			},
			wantMembers: 1,
			wantStart:   480,
			wantEnd:     1200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize("h1", "20240315", tt.records)
			if tt.wantNil {
				if got != nil {
					t.Errorf("got %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("got nil summary")
			}
			if got.AvailableMembers != tt.wantMembers {
				t.Errorf("members = %d, want %d", got.AvailableMembers, tt.wantMembers)
			}
			if intVal(got.EarliestStartMinutes) != tt.wantStart {
				t.Errorf("earliest = %v, want %v", intVal(got.EarliestStartMinutes), tt.wantStart)
			}
			if intVal(got.LatestEndMinutes) != tt.wantEnd {
				t.Errorf("latest = %v, want %v", intVal(got.LatestEndMinutes), tt.wantEnd)
			}
		})
	}
}

func TestChangeKey(t *testing.T) {
	before := &model.AvailabilityRecord{HouseholdID: "h1", DateKey: "20240101"}
	after := &model.AvailabilityRecord{HouseholdID: "h2", DateKey: "20240202"}

	if h, d, ok := ChangeKey(before, after); !ok || h != "h2" || d != "20240202" {
		t.Errorf("update key = %s/%s/%v, want h2/20240202/true", h, d, ok)
	}
	if h, d, ok := ChangeKey(before, nil); !ok || h != "h1" || d != "20240101" {
		t.Errorf("delete key = %s/%s/%v, want h1/20240101/true", h, d, ok)
	}
	if _, _, ok := ChangeKey(nil, nil); ok {
		t.Error("expected no key when both states are absent")
	}
	if _, _, ok := ChangeKey(nil, &model.AvailabilityRecord{HouseholdID: "h1"}); ok {
		t.Error("expected no key without a date")
	}
}

type recordingHub struct {
	types []string
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.types = append(h.types, msg.Type)
}

func setupAggregator(t *testing.T) (*store.AvailabilityStore, *Aggregator, *recordingHub) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := store.NewAvailabilityStore(db)
	hub := &recordingHub{}
	return s, NewAggregator(s, hub, slog.Default()), hub
}

func TestAggregatorLifecycle(t *testing.T) {
	s, agg, hub := setupAggregator(t)
	ctx := context.Background()

	put := func(user string, slots ...model.Slot) {
		t.Helper()
		before, after, err := s.Put(ctx, model.AvailabilityRecord{UserID: user, HouseholdID: "h1", DateKey: "20240315", Slots: slots})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if _, err := agg.HandleChange(ctx, before, after); err != nil {
			t.Fatalf("handle change: %v", err)
		}
	}

	put("a", model.Slot{StartMinutes: 60, EndMinutes: 120})
	put("b", model.Slot{StartMinutes: 30, EndMinutes: 90})

	sum, err := s.GetSummary(ctx, "h1", "20240315")
	if err != nil || sum == nil {
		t.Fatalf("get summary: %v, %v", sum, err)
	}
	if sum.AvailableMembers != 2 || intVal(sum.EarliestStartMinutes) != 30 || intVal(sum.LatestEndMinutes) != 120 {
		t.Errorf("summary = %d/%v/%v, want 2/30/120",
			sum.AvailableMembers, intVal(sum.EarliestStartMinutes), intVal(sum.LatestEndMinutes))
	}

	// Clearing both members' slots keeps the summary but drops the bounds.
	put("a")
	put("b")
	sum, err = s.GetSummary(ctx, "h1", "20240315")
	if err != nil || sum == nil {
		t.Fatalf("get summary after clear: %v, %v", sum, err)
	}
	if sum.AvailableMembers != 0 || sum.EarliestStartMinutes != nil || sum.LatestEndMinutes != nil {
		t.Errorf("summary = %d/%v/%v, want 0/nil/nil",
			sum.AvailableMembers, intVal(sum.EarliestStartMinutes), intVal(sum.LatestEndMinutes))
	}

	// Deleting the last records removes the summary.
	for _, user := range []string{"a", "b"} {
		before, err := s.Delete(ctx, user, "h1", "20240315")
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := agg.HandleChange(ctx, before, nil); err != nil {
			t.Fatalf("handle delete: %v", err)
		}
	}
	sum, err = s.GetSummary(ctx, "h1", "20240315")
	if err != nil {
		t.Fatalf("get summary after delete: %v", err)
	}
	if sum != nil {
		t.Errorf("summary = %+v, want nil", sum)
	}

	last := hub.types[len(hub.types)-1]
	if last != "availability_summary_deleted" {
		t.Errorf("last broadcast = %q, want availability_summary_deleted", last)
	}
}

func TestRecomputeMissingSummaryDelete(t *testing.T) {
	_, agg, _ := setupAggregator(t)

	sum, err := agg.Recompute(context.Background(), "h1", "20990101")
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if sum != nil {
		t.Errorf("sum = %+v, want nil", sum)
	}
}

func TestHandleChangeNoKey(t *testing.T) {
	_, agg, hub := setupAggregator(t)

	sum, err := agg.HandleChange(context.Background(), nil, nil)
	if err != nil || sum != nil {
		t.Errorf("got %v, %v; want nil, nil", sum, err)
	}
	if len(hub.types) != 0 {
		t.Errorf("broadcasts = %v, want none", hub.types)
	}
}
