package billing

import (
	"context"
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Processor runs an authenticated notification through the ledger and the router
type Processor struct {
	events repository.WebhookEventRepository
	router *Router
	dedupe bool
	logger *zap.Logger
}

// NewProcessor creates a processor. events may be nil to run without a ledger.
func NewProcessor(events repository.WebhookEventRepository, router *Router, dedupe bool, logger *zap.Logger) *Processor {
	return &Processor{
		events: events,
		router: router,
		dedupe: dedupe,
		logger: logger,
	}
}

// Process handles one delivery. The returned Result never changes the HTTP
// acknowledgement; it only decides the ledger state.
func (p *Processor) Process(ctx context.Context, n *entity.Notification) Result {
	logger := p.logger.With(
		zap.String("event_id", n.ID),
		zap.String("event_type", n.Type))

	tracked := false
	if p.events != nil {
		inserted, err := p.events.SaveEvent(ctx, n)
		if err != nil {
			// Processing continues without dedupe or retry bookkeeping
			logger.Warn("Failed to save webhook event to ledger", zap.Error(err))
		} else {
			tracked = true
			if !p.claim(ctx, logger, n.ID, !p.dedupe) {
				logger.Info("Skipping webhook event that is completed or in flight",
					zap.Bool("inserted", inserted),
					zap.String("status", p.ledgerStatus(ctx, n.ID)))
				metrics.WebhookEventsTotal.WithLabelValues(n.Type, string(OutcomeDuplicate)).Inc()
				return Duplicate()
			}
		}
	}

	return p.run(ctx, n, tracked)
}

// Redeliver re-runs a notification taken from the ledger. It returns
// Duplicate without dispatching when another worker holds the event.
func (p *Processor) Redeliver(ctx context.Context, n *entity.Notification) Result {
	if p.events != nil {
		logger := p.logger.With(zap.String("event_id", n.ID))
		if !p.claim(ctx, logger, n.ID, false) {
			logger.Info("Skipping redelivery of webhook event that is completed or in flight")
			return Duplicate()
		}
	}
	return p.run(ctx, n, p.events != nil)
}

// claim reports whether this caller may dispatch the event. A ledger error
// lets processing continue untracked by the claim.
func (p *Processor) claim(ctx context.Context, logger *zap.Logger, eventID string, includeCompleted bool) bool {
	claimed, err := p.events.ClaimEvent(ctx, eventID, includeCompleted)
	if err != nil {
		logger.Warn("Failed to claim webhook event", zap.Error(err))
		return true
	}
	return claimed
}

func (p *Processor) ledgerStatus(ctx context.Context, eventID string) string {
	existing, err := p.events.GetEvent(ctx, eventID)
	if err != nil || existing == nil {
		return ""
	}
	return string(existing.Status)
}

func (p *Processor) run(ctx context.Context, n *entity.Notification, tracked bool) Result {
	start := time.Now()
	ctx = WithProviderEventID(ctx, n.ID)

	result := p.router.Dispatch(ctx, n)

	metrics.WebhookEventsTotal.WithLabelValues(n.Type, string(result.Outcome)).Inc()
	metrics.WebhookDuration.WithLabelValues(n.Type).Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("event_id", n.ID),
		zap.String("event_type", n.Type),
		zap.String("outcome", string(result.Outcome)),
		zap.Stringp("account_id", result.AccountID),
		zap.String("activity_type", result.ActivityType),
	}
	switch result.Outcome {
	case OutcomeRetryable:
		p.logger.Warn("Webhook event failed, will retry", append(fields, zap.Error(result.Err))...)
	case OutcomePermanent:
		p.logger.Error("Webhook event failed permanently", append(fields, zap.Error(result.Err))...)
	default:
		p.logger.Info("Webhook event processed", fields...)
	}

	if tracked {
		p.settle(ctx, n, result)
	}
	return result
}

func (p *Processor) settle(ctx context.Context, n *entity.Notification, result Result) {
	var err error
	if result.IsRetryable() {
		err = p.events.MarkFailed(ctx, n.ID, result.Err)
	} else {
		err = p.events.MarkProcessed(ctx, n.ID)
	}
	if err != nil {
		p.logger.Warn("Failed to update webhook ledger",
			zap.String("event_id", n.ID),
			zap.String("outcome", string(result.Outcome)),
			zap.Error(err))
	}
}
