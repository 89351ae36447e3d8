package model

import "time"

type Birthday struct {
	ID             string     `json:"id"`
	HouseholdID    string     `json:"household_id"`
	Name           string     `json:"name"`
	BirthDate      time.Time  `json:"birth_date"`
	NextOccurrence *time.Time `json:"next_occurrence,omitempty"`
	UpcomingAge    *int       `json:"upcoming_age,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
