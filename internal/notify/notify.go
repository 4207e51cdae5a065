// Package notify delivers the short, transient messages that report the
// outcome of session and collection operations to the user.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ytakahashi/todo-sync/internal/errs"
)

// Variant selects how prominently a notification is shown.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient message with a short title.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

// Notifier delivers notifications. Delivery failures are the notifier's own
// concern and never fail the operation being reported.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Success builds a default notification.
func Success(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault, At: time.Now()}
}

// Failure builds a destructive notification describing err.
func Failure(err error) Notification {
	e := errs.As("", err)
	return Notification{Title: e.Title(), Description: e.Detail(), Variant: VariantDestructive, At: time.Now()}
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Log writes notifications to a structured logger.
type Log struct {
	log logrus.FieldLogger
}

// NewLog creates a notifier that logs through log.
func NewLog(log logrus.FieldLogger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, n Notification) {
	entry := l.log.WithFields(logrus.Fields{
		"title":       n.Title,
		"description": n.Description,
		"variant":     n.Variant,
	})
	if n.Variant == VariantDestructive {
		entry.Warn("notification")
		return
	}
	entry.Info("notification")
}

// Buffer keeps the most recent notifications until they are drained. The
// HTTP API hands them to its client this way.
type Buffer struct {
	mu    sync.Mutex
	max   int
	items []Notification
}

// NewBuffer keeps at most max notifications, dropping the oldest.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 50
	}
	return &Buffer{max: max}
}

func (b *Buffer) Notify(_ context.Context, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if over := len(b.items) - b.max; over > 0 {
		b.items = append([]Notification(nil), b.items[over:]...)
	}
}

// Drain returns the buffered notifications, oldest first, and empties the buffer.
func (b *Buffer) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	if items == nil {
		items = []Notification{}
	}
	return items
}
