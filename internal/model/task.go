package model

import "time"

type Task struct {
	ID              string     `json:"id"`
	HouseholdID     string     `json:"household_id"`
	Title           string     `json:"title"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	IsCompleted     bool       `json:"is_completed"`
	AssigneeIDs     []string   `json:"assignee_ids"`
	LastReminderKey string     `json:"last_reminder_key,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
