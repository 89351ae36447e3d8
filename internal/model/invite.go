package model

import "time"

type Invite struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}
