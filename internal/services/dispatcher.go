// internal/services/dispatcher.go
package services

import (
	"context"
	"time"

	"github.com/permitwatch/permitwatch-backend/internal/models"
)

// Recipient is one delivery target resolved from a business's owner/admin
// memberships.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Message carries channel-specific renderings of one reminder. Email uses
// Subject/HTMLBody; SMS uses Text.
type Message struct {
	Subject  string
	HTMLBody string
	Text     string
}

type DispatchResult struct {
	Delivered  bool   `json:"delivered"`
	Simulated  bool   `json:"simulated,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Dispatcher sends one message to one recipient over a single channel.
// Implementations must treat a missing provider configuration as simulated
// success so environments without credentials never block the pipeline.
type Dispatcher interface {
	Channel() models.ReminderChannel
	Send(ctx context.Context, rcpt Recipient, msg Message) DispatchResult
}

// sendWithRetry runs attempt up to maxRetries times with a fixed delay
// between attempts, returning after the first success. The delay honors
// context cancellation.
func sendWithRetry(ctx context.Context, maxRetries int, delay time.Duration, attempt func() (string, error)) DispatchResult {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		providerID, err := attempt()
		if err == nil {
			return DispatchResult{Delivered: true, ProviderID: providerID}
		}
		lastErr = err

		if i < maxRetries {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return DispatchResult{Error: ctx.Err().Error()}
			}
		}
	}

	return DispatchResult{Error: lastErr.Error()}
}
