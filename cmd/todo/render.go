package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ytakahashi/todo-sync/internal/models"
)

var (
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	dueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func renderTodo(t models.Todo) string {
	box, title := "[ ]", t.Title
	if t.IsCompleted {
		box, title = "[x]", doneStyle.Render(t.Title)
	}
	line := fmt.Sprintf("%s %s %s", box, title, idStyle.Render(t.ID))
	if t.DueDate != nil {
		line += " " + dueStyle.Render("due "+t.DueDate.String())
	}
	return line
}

func renderProjectLine(p models.Project) string {
	name := headerStyle.Foreground(lipgloss.Color(p.DisplayColor())).Render(p.Name)
	return fmt.Sprintf("%s %d/%d %s", name, p.Completed(), p.Total(), idStyle.Render(p.ID))
}

// renderProject prints the project's progress and the given subset of its todos.
func renderProject(p models.Project, todos []models.Todo) string {
	var b strings.Builder
	b.WriteString(renderProjectLine(p))
	for _, t := range todos {
		b.WriteString("\n  ")
		b.WriteString(renderTodo(t))
	}
	return b.String()
}
