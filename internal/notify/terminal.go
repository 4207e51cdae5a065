package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	toastStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	toastTitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	toastErrorTitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// Terminal renders notifications as boxed toasts.
type Terminal struct {
	out io.Writer
}

// NewTerminal creates a notifier that writes to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Render formats n without writing it.
func Render(n Notification) string {
	title := toastTitle
	if n.Variant == VariantDestructive {
		title = toastErrorTitle
	}
	body := title.Render(n.Title)
	if n.Description != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, n.Description)
	}
	return toastStyle.Render(body)
}

func (t *Terminal) Notify(_ context.Context, n Notification) {
	fmt.Fprintln(t.out, Render(n))
}
