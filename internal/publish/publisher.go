// Package publish defines the interface for chat-message destinations.
package publish

import "context"

// Publisher is the interface that outbound destinations must implement.
// Each backend delivers one bounded text chunk per call to the target
// service (e.g., Telegram Bot API, SES email relay, stdout).
type Publisher interface {
	// Publish delivers one text chunk through this backend.
	// It returns an error if the delivery fails.
	Publish(ctx context.Context, text string) error

	// Name returns the human-readable name of this backend.
	Name() string
}
