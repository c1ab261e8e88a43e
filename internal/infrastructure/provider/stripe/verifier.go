package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stripelib "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Verifier authenticates Stripe webhook deliveries
type Verifier struct {
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
}

// NewVerifier creates a verifier for the given signing secret. A zero
// tolerance uses the library default of 300 seconds.
func NewVerifier(secret string, tolerance time.Duration, logger *zap.Logger) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Verify checks the Stripe-Signature header against the raw body and decodes the event.
// It fails closed when either the header or the secret is missing.
func (v *Verifier) Verify(payload []byte, signature string) (*entity.Notification, error) {
	if strings.TrimSpace(v.secret) == "" {
		metrics.SignatureFailuresTotal.WithLabelValues("missing_secret").Inc()
		v.logger.Error("Webhook signing secret is not configured")
		return nil, domainErrors.ErrMissingSecret
	}
	if strings.TrimSpace(signature) == "" {
		metrics.SignatureFailuresTotal.WithLabelValues("missing_signature").Inc()
		return nil, domainErrors.ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		metrics.SignatureFailuresTotal.WithLabelValues("invalid").Inc()
		v.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidSignature, err)
	}

	return toNotification(&event, payload), nil
}

// ParseNotification decodes an already authenticated event body, as stored in
// the webhook ledger. It performs no signature check.
func ParseNotification(payload []byte) (*entity.Notification, error) {
	var event stripelib.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("event is missing id or type")
	}
	return toNotification(&event, payload), nil
}

func toNotification(event *stripelib.Event, raw []byte) *entity.Notification {
	n := &entity.Notification{
		ID:         event.ID,
		Type:       string(event.Type),
		Created:    time.Unix(event.Created, 0).UTC(),
		Livemode:   event.Livemode,
		APIVersion: event.APIVersion,
		Raw:        raw,
	}
	if event.Data != nil {
		n.Object = event.Data.Raw
	}
	return n
}
