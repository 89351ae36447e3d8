package model

import (
	"fmt"
	"time"
)

type Slot struct {
	StartMinutes int `json:"start_minutes"`
	EndMinutes   int `json:"end_minutes"`
}

type AvailabilityRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	HouseholdID string    `json:"household_id"`
	DateKey     string    `json:"date_key"`
	Slots       []Slot    `json:"slots"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AvailabilitySummary is the per-household, per-day rollup. EarliestStartMinutes
// and LatestEndMinutes are nil when no slot contributed.
type AvailabilitySummary struct {
	HouseholdID          string    `json:"household_id"`
	DateKey              string    `json:"date_key"`
	AvailableMembers     int       `json:"available_members"`
	EarliestStartMinutes *int      `json:"earliest_start_minutes,omitempty"`
	LatestEndMinutes     *int      `json:"latest_end_minutes,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func SummaryID(householdID, dateKey string) string {
	return fmt.Sprintf("%s_%s", householdID, dateKey)
}

// DateKey formats t as a zero-padded YYYYMMDD key in t's location.
func DateKey(t time.Time) string {
	return t.Format("20060102")
}
