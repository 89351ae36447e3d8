// Package availability maintains the per-household, per-day availability
// summary derived from members' availability records.
package availability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/websocket"
)

// ChangeKey derives the (household, day) affected by a record change. The
// after state wins; a deletion falls back to the before state. ok is false
// when neither state identifies a day.
func ChangeKey(before, after *model.AvailabilityRecord) (householdID, dateKey string, ok bool) {
	for _, r := range []*model.AvailabilityRecord{after, before} {
		if r != nil && r.HouseholdID != "" && r.DateKey != "" {
			return r.HouseholdID, r.DateKey, true
		}
	}
	return "", "", false
}

// Summarize computes the summary for a day from the full set of its records.
// It returns nil when there are no records, meaning the summary should not
// exist.
func Summarize(householdID, dateKey string, records []model.AvailabilityRecord) *model.AvailabilitySummary {
	if len(records) == 0 {
		return nil
	}

	sum := &model.AvailabilitySummary{HouseholdID: householdID, DateKey: dateKey}
	for _, r := range records {
		if len(r.Slots) > 0 {
			sum.AvailableMembers++
		}
		for _, s := range r.Slots {
			if sum.EarliestStartMinutes == nil || s.StartMinutes < *sum.EarliestStartMinutes {
				v := s.StartMinutes
				sum.EarliestStartMinutes = &v
			}
			if sum.LatestEndMinutes == nil || s.EndMinutes > *sum.LatestEndMinutes {
				v := s.EndMinutes
				sum.LatestEndMinutes = &v
			}
		}
	}
	return sum
}

type Store interface {
	ListByDay(ctx context.Context, householdID, dateKey string) ([]model.AvailabilityRecord, error)
	PutSummary(ctx context.Context, sum model.AvailabilitySummary) error
	DeleteSummary(ctx context.Context, householdID, dateKey string) error
}

// Aggregator recomputes summaries when availability records change.
type Aggregator struct {
	store  Store
	hub    websocket.Broadcaster
	logger *slog.Logger
}

// NewAggregator creates an aggregator. hub may be nil.
func NewAggregator(store Store, hub websocket.Broadcaster, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, hub: hub, logger: logger}
}

// HandleChange reacts to one record transition. Either side may be nil.
func (a *Aggregator) HandleChange(ctx context.Context, before, after *model.AvailabilityRecord) (*model.AvailabilitySummary, error) {
	hid, dateKey, ok := ChangeKey(before, after)
	if !ok {
		return nil, nil
	}
	return a.Recompute(ctx, hid, dateKey)
}

// Recompute rebuilds the summary for a day from all of its current records.
// It returns the stored summary, or nil if the summary was removed.
func (a *Aggregator) Recompute(ctx context.Context, householdID, dateKey string) (*model.AvailabilitySummary, error) {
	records, err := a.store.ListByDay(ctx, householdID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	sum := Summarize(householdID, dateKey, records)
	if sum == nil {
		if err := a.store.DeleteSummary(ctx, householdID, dateKey); err != nil {
			return nil, err
		}
		a.logger.Debug("availability summary deleted", "household_id", householdID, "date", dateKey)
		a.broadcast(householdID, dateKey, "deleted", nil)
		return nil, nil
	}

	if err := a.store.PutSummary(ctx, *sum); err != nil {
		return nil, err
	}
	a.logger.Debug("availability summary updated",
		"household_id", householdID,
		"date", dateKey,
		"available_members", sum.AvailableMembers,
	)
	a.broadcast(householdID, dateKey, "updated", map[string]any{"summary": sum})
	return sum, nil
}

func (a *Aggregator) broadcast(householdID, dateKey, action string, extra map[string]any) {
	if a.hub == nil {
		return
	}
	a.hub.Broadcast(websocket.NewMessage(householdID, "availability_summary", action,
		model.SummaryID(householdID, dateKey), extra))
}
