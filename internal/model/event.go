package model

import "time"

// CategoryImport marks events created by an interchange import.
const CategoryImport = "import"

type Calendar struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

type Event struct {
	ID             string    `json:"id"`
	CalendarID     string    `json:"calendar_id"`
	HouseholdID    string    `json:"household_id"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Location       string    `json:"location,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	ParticipantIDs []string  `json:"participant_ids"`
	Category       string    `json:"category"`
	Visibility     string    `json:"visibility"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
