package provider

import (
	"context"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

// ProviderType represents the billing provider
type ProviderType string

const (
	ProviderTypeStripe ProviderType = "stripe"
)

// Verifier authenticates an inbound notification against the raw request body
type Verifier interface {
	Verify(payload []byte, signature string) (*entity.Notification, error)
}

// Lookup reads objects from the provider API to recover account associations
type Lookup interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*entity.ProviderObject, error)
	GetCustomer(ctx context.Context, customerID string) (*entity.ProviderObject, error)
}
