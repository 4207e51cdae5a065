package models

import "time"

// DefaultProjectColor is shown for projects created without a color.
const DefaultProjectColor = "#9D6EFF"

// Project groups todos. Todos is a read-time view built from the flat todo
// collection and is never persisted.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Todos     []Todo    `json:"todos"`
}

// DisplayColor returns the project color or the default one.
func (p Project) DisplayColor() string {
	if p.Color == "" {
		return DefaultProjectColor
	}
	return p.Color
}

// Total returns the number of todos in the project view.
func (p Project) Total() int {
	return len(p.Todos)
}

// Completed returns the number of completed todos in the project view.
func (p Project) Completed() int {
	n := 0
	for _, t := range p.Todos {
		if t.IsCompleted {
			n++
		}
	}
	return n
}

// ProjectDraft is the caller-supplied part of a new project.
type ProjectDraft struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
