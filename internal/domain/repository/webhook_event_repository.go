package repository

import (
	"context"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

// WebhookEventRepository is the ledger of received provider events
type WebhookEventRepository interface {
	// SaveEvent stores the event if its id is new and reports whether it was inserted.
	SaveEvent(ctx context.Context, n *entity.Notification) (bool, error)
	GetEvent(ctx context.Context, eventID string) (*entity.WebhookEvent, error)
	// ClaimEvent marks the event as processing and reports whether this caller
	// now owns it. Completed events are claimable only with includeCompleted.
	ClaimEvent(ctx context.Context, eventID string, includeCompleted bool) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
	GetRetryableEvents(ctx context.Context, limit, maxAttempts int) ([]*entity.WebhookEvent, error)
}
