// Package notify delivers created incidents to external channels.
package notify

import (
	"context"

	"github.com/adityaviki/sentinelops/internal/models"
)

// Notifier delivers an incident to one external channel. Implementations
// must be best-effort: a delivery failure is reported as an error but must
// never block or fail incident creation.
type Notifier interface {
	// Channel names the channel for logging and metrics labeling.
	Channel() string
	Notify(ctx context.Context, incident *models.Incident) error
}
