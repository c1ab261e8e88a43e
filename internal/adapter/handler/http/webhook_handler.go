package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/provider"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/usecase/billing"
	"go.uber.org/zap"
)

// SignatureHeader is the header Stripe signs webhook deliveries with
const SignatureHeader = "Stripe-Signature"

// EventProcessor runs an authenticated notification through the billing pipeline
type EventProcessor interface {
	Process(ctx context.Context, n *entity.Notification) billing.Result
}

type WebhookHandler struct {
	verifier  provider.Verifier
	processor EventProcessor
	logger    *zap.Logger
}

func NewWebhookHandler(verifier provider.Verifier, processor EventProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
		logger:    logger,
	}
}

// HandleWebhook authenticates the raw body and hands the event to the processor.
// Once the signature is valid the delivery is acknowledged with 200 whatever
// the processing outcome; retries are driven from the event ledger instead.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return h.respond(c, http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	sig := c.Request().Header.Get(SignatureHeader)

	n, err := h.verifier.Verify(body, sig)
	if err != nil {
		h.logger.Warn("Webhook rejected",
			zap.Error(err),
			zap.Int("body_size", len(body)),
			zap.String("ip", c.RealIP()),
		)
		return h.respond(c, http.StatusBadRequest, echo.Map{"error": rejectionMessage(err)})
	}

	h.logger.Info("Webhook event received",
		zap.String("event_id", n.ID),
		zap.String("event_type", n.Type),
		zap.Time("created", n.Created),
		zap.Bool("livemode", n.Livemode),
	)

	h.processor.Process(c.Request().Context(), n)

	return h.respond(c, http.StatusOK, echo.Map{"received": true})
}

func (h *WebhookHandler) respond(c echo.Context, status int, body echo.Map) error {
	metrics.WebhookRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	return c.JSON(status, body)
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrMissingSignature):
		return "missing Stripe signature"
	case errors.Is(err, domainErrors.ErrMissingSecret):
		return "webhook secret not configured"
	case errors.Is(err, domainErrors.ErrInvalidSignature):
		return "invalid Stripe signature"
	default:
		return "invalid webhook payload"
	}
}
