package models

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Todo represents a todo item
type Todo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	IsCompleted bool        `json:"is_completed"`
	CreatedAt   time.Time   `json:"created_at"`
	UserID      string      `json:"user_id"`
	ProjectID   string      `json:"project_id"`
	DueDate     *civil.Date `json:"due_date,omitempty"`
}

// TodoDraft is the caller-supplied part of a new todo. The gateway assigns
// id, created_at and user_id.
type TodoDraft struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	IsCompleted bool        `json:"is_completed"`
	ProjectID   string      `json:"project_id"`
	DueDate     *civil.Date `json:"due_date,omitempty"`
}

// Normalize trims the free-text fields.
func (d TodoDraft) Normalize() TodoDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.ProjectID = strings.TrimSpace(d.ProjectID)
	return d
}

// TodoUpdate carries the fields of a partial update. Nil fields are left as they are.
type TodoUpdate struct {
	Title        *string     `json:"title,omitempty"`
	Description  *string     `json:"description,omitempty"`
	IsCompleted  *bool       `json:"is_completed,omitempty"`
	ProjectID    *string     `json:"project_id,omitempty"`
	DueDate      *civil.Date `json:"due_date,omitempty"`
	ClearDueDate bool        `json:"clear_due_date,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u TodoUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.IsCompleted == nil &&
		u.ProjectID == nil && u.DueDate == nil && !u.ClearDueDate
}

// Apply returns a copy of t with the update applied. Id, created_at and
// user_id are never touched.
func (u TodoUpdate) Apply(t Todo) Todo {
	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	if u.IsCompleted != nil {
		t.IsCompleted = *u.IsCompleted
	}
	if u.ProjectID != nil {
		t.ProjectID = strings.TrimSpace(*u.ProjectID)
	}
	if u.ClearDueDate {
		t.DueDate = nil
	} else if u.DueDate != nil {
		d := *u.DueDate
		t.DueDate = &d
	}
	return t
}

// CompletedUpdate is the update that sets is_completed.
func CompletedUpdate(completed bool) TodoUpdate {
	return TodoUpdate{IsCompleted: &completed}
}
