package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"go.uber.org/zap"
)

// Metadata keys that carry the internal account id on provider objects, in lookup order.
var accountMetadataKeys = []string{"account_id", "accountId"}

// accountFromMetadata returns the account id stored on a provider object, or nil.
func accountFromMetadata(metadata map[string]string) *string {
	for _, key := range accountMetadataKeys {
		if id := strings.TrimSpace(metadata[key]); id != "" {
			return &id
		}
	}
	return nil
}

// accountForSubscription resolves the account that owns a subscription through the provider API.
func (h *Handlers) accountForSubscription(ctx context.Context, subscriptionID string) (string, error) {
	if subscriptionID == "" {
		return "", fmt.Errorf("no subscription reference: %w", domainErrors.ErrAccountUnresolved)
	}

	sub, err := h.lookup.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return "", err
	}

	if id := accountFromMetadata(sub.Metadata); id != nil {
		return *id, nil
	}
	return "", fmt.Errorf("subscription %s has no account metadata: %w", subscriptionID, domainErrors.ErrAccountUnresolved)
}

// accountForCustomer resolves the account that owns a customer through the provider API.
func (h *Handlers) accountForCustomer(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("no customer reference: %w", domainErrors.ErrAccountUnresolved)
	}

	cus, err := h.lookup.GetCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	if cus.Deleted {
		return "", fmt.Errorf("customer %s is deleted: %w", customerID, domainErrors.ErrAccountUnresolved)
	}

	if id := accountFromMetadata(cus.Metadata); id != nil {
		return *id, nil
	}
	return "", fmt.Errorf("customer %s has no account metadata: %w", customerID, domainErrors.ErrAccountUnresolved)
}

// resolveFailed maps a resolution error to a Result. Not-found and missing
// associations end the handler quietly, anything else is worth retrying.
func (h *Handlers) resolveFailed(ctx context.Context, n *entity.Notification, objectID string, err error) Result {
	if errors.Is(err, domainErrors.ErrLookupNotFound) || errors.Is(err, domainErrors.ErrAccountUnresolved) {
		return h.unassociated(ctx, n, objectID, err)
	}

	h.logger.Warn("Account lookup failed",
		zap.String("event_id", n.ID),
		zap.String("event_type", n.Type),
		zap.String("object_id", objectID),
		zap.Error(err))
	return Retryable(err)
}

// unassociated ends a handler that could not determine the owning account.
// Nothing is written unless unassociated recording is enabled.
func (h *Handlers) unassociated(ctx context.Context, n *entity.Notification, objectID string, cause error) Result {
	h.logger.Info("Webhook event not associated with an account",
		zap.String("event_id", n.ID),
		zap.String("event_type", n.Type),
		zap.String("object_id", objectID),
		zap.Error(cause))

	if !h.recordUnassociated {
		return Skipped(cause)
	}

	metadata := map[string]interface{}{
		"eventType": n.Type,
		"objectId":  objectID,
		"reason":    cause.Error(),
	}
	description := fmt.Sprintf("Unassociated %s event", n.Type)
	if _, err := h.recorder.Record(ctx, nil, ActivityUnassociated, description, metadata); err != nil {
		return Retryable(err)
	}
	return Skipped(cause).WithActivity(nil, ActivityUnassociated)
}
