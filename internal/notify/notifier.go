// Package notify delivers operational alerts to a chat webhook: penalty
// sweep results, smart meter ingest failures and similar back-office events.
package notify

import "context"

// Message represents a notification payload.
type Message struct {
	Title   string         `json:"title"`
	Details map[string]any `json:"details,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
