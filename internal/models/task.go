package models

import "time"

// TaskSnapshot is the externally-fetched view of a task fed into the SLA
// evaluator. The engine never loads tasks itself; collaborators push these.
type TaskSnapshot struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Status       string                 `json:"status"`
	Priority     string                 `json:"priority"`
	Blocked      bool                   `json:"blocked"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
	AssigneeIDs  []string               `json:"assignee_ids,omitempty"`
	CreatedAt    *time.Time             `json:"created_at,omitempty"`
	UpdatedAt    *time.Time             `json:"updated_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	DueDate      *time.Time             `json:"due_date,omitempty"`
}

// Completed reports whether the task has a completion timestamp.
func (t TaskSnapshot) Completed() bool {
	return t.CompletedAt != nil
}

// Overdue reports whether the task's due date has passed without completion.
func (t TaskSnapshot) Overdue(now time.Time) bool {
	return !t.Completed() && t.DueDate != nil && t.DueDate.Before(now)
}

// StartedAt returns the reference instant the SLA clock runs from:
// created_at, falling back to updated_at, falling back to now.
func (t TaskSnapshot) StartedAt(now time.Time) time.Time {
	if t.CreatedAt != nil {
		return *t.CreatedAt
	}
	if t.UpdatedAt != nil {
		return *t.UpdatedAt
	}
	return now
}
