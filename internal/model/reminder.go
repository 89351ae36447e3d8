package model

import (
	"fmt"
	"time"
)

// Terminal reasons recorded on a reminder that was marked sent without a delivery.
const (
	ReasonMissingEvent = "missing-event"
	ReasonNoTokens     = "no-tokens"
	ReasonSendFailed   = "send-failed"
	ReasonLookupFailed = "lookup-failed"
)

type Reminder struct {
	ID              string     `json:"id"`
	CalendarID      string     `json:"calendar_id"`
	EventID         string     `json:"event_id"`
	HouseholdID     string     `json:"household_id"`
	ReminderMinutes int        `json:"reminder_minutes"`
	FireAt          time.Time  `json:"fire_at"`
	Sent            bool       `json:"sent"`
	Reason          string     `json:"reason,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReminderID is the deterministic key for an (event, offset) pair.
func ReminderID(eventID string, minutes int) string {
	return fmt.Sprintf("%s_%d", eventID, minutes)
}
