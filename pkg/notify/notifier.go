package notify

import (
	"context"
	"time"
)

// Notification is one operator-facing message.
type Notification struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Notifier defines the interface for any operator notification channel.
type Notifier interface {
	// Name returns the unique name of the notifier.
	Name() string
	// Notify delivers n. Errors are reported to the dispatcher, which never
	// passes them on.
	Notify(ctx context.Context, n Notification) error
}
