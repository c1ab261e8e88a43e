package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	stripelib "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	kindSubscription = "subscription"
	kindCustomer     = "customer"
)

// NewAPI builds a Stripe client for the given key. apiURL may be empty to use
// the public API.
func NewAPI(secretKey, apiURL string, httpClient *http.Client, logger *zap.Logger) *client.API {
	backends := stripelib.NewBackends(httpClient)
	if apiURL != "" {
		backends.API = stripelib.GetBackendWithConfig(stripelib.APIBackend, &stripelib.BackendConfig{
			URL:           stripelib.String(apiURL),
			HTTPClient:    httpClient,
			LeveledLogger: logger.Sugar(),
		})
	}
	return client.New(secretKey, backends)
}

// LookupClient reads subscriptions and customers from the Stripe API
type LookupClient struct {
	api    *client.API
	logger *zap.Logger
}

// NewLookupClient creates a lookup client over an injected Stripe API client
func NewLookupClient(api *client.API, logger *zap.Logger) *LookupClient {
	return &LookupClient{
		api:    api,
		logger: logger,
	}
}

// GetSubscription fetches a subscription with its owning customer and metadata
func (c *LookupClient) GetSubscription(ctx context.Context, subscriptionID string) (*entity.ProviderObject, error) {
	params := &stripelib.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, c.lookupError(kindSubscription, subscriptionID, err)
	}
	metrics.LookupsTotal.WithLabelValues(kindSubscription, "ok").Inc()

	obj := &entity.ProviderObject{
		ID:       sub.ID,
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		obj.CustomerID = sub.Customer.ID
	}
	return obj, nil
}

// GetCustomer fetches a customer and its metadata
func (c *LookupClient) GetCustomer(ctx context.Context, customerID string) (*entity.ProviderObject, error) {
	params := &stripelib.CustomerParams{}
	params.Context = ctx

	cus, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, c.lookupError(kindCustomer, customerID, err)
	}
	metrics.LookupsTotal.WithLabelValues(kindCustomer, "ok").Inc()

	return &entity.ProviderObject{
		ID:         cus.ID,
		CustomerID: cus.ID,
		Metadata:   cus.Metadata,
		Deleted:    cus.Deleted,
	}, nil
}

func (c *LookupClient) lookupError(kind, id string, err error) error {
	if isNotFound(err) {
		metrics.LookupsTotal.WithLabelValues(kind, "not_found").Inc()
		return fmt.Errorf("%s %s: %w", kind, id, domainErrors.ErrLookupNotFound)
	}

	metrics.LookupsTotal.WithLabelValues(kind, "error").Inc()
	c.logger.Warn("Stripe lookup failed",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.Error(err))
	return fmt.Errorf("failed to get %s %s: %w", kind, id, err)
}

func isNotFound(err error) bool {
	var stripeErr *stripelib.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode == http.StatusNotFound ||
		stripeErr.Code == stripelib.ErrorCodeResourceMissing
}
