package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// ParseFunc decodes a stored event body without verifying a signature
type ParseFunc func(payload []byte) (*entity.Notification, error)

// ReplayerConfig controls the retry loop
type ReplayerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Replayer periodically re-dispatches ledger events that failed with a retryable outcome
type Replayer struct {
	events    repository.WebhookEventRepository
	processor *Processor
	parse     ParseFunc
	config    ReplayerConfig
	logger    *zap.Logger
}

func NewReplayer(events repository.WebhookEventRepository, processor *Processor, parse ParseFunc, config ReplayerConfig, logger *zap.Logger) *Replayer {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	return &Replayer{
		events:    events,
		processor: processor,
		parse:     parse,
		config:    config,
		logger:    logger,
	}
}

// Run replays due events on every tick until ctx is cancelled.
func (r *Replayer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Info("Webhook replayer started",
		zap.Duration("interval", r.config.Interval),
		zap.Int("max_attempts", r.config.MaxAttempts))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Webhook replayer stopped")
			return
		case <-ticker.C:
			r.ReplayOnce(ctx)
		}
	}
}

// ReplayOnce processes one batch of due events and returns how many were dispatched.
func (r *Replayer) ReplayOnce(ctx context.Context) int {
	events, err := r.events.GetRetryableEvents(ctx, r.config.BatchSize, r.config.MaxAttempts)
	if err != nil {
		r.logger.Error("Failed to load retryable webhook events", zap.Error(err))
		return 0
	}

	dispatched := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if r.replay(ctx, event) {
			dispatched++
		}
	}
	return dispatched
}

func (r *Replayer) replay(ctx context.Context, event *entity.WebhookEvent) (dispatched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic while replaying webhook event",
				zap.String("event_id", event.EventID),
				zap.Any("panic", rec))
			_ = r.events.MarkFailed(ctx, event.EventID, fmt.Errorf("panic: %v", rec))
			metrics.ReplayedEventsTotal.WithLabelValues("panic").Inc()
			dispatched = false
		}
	}()

	n, err := r.parse(event.Payload)
	if err != nil {
		r.logger.Error("Failed to decode stored webhook event",
			zap.String("event_id", event.EventID),
			zap.Error(err))
		if markErr := r.events.MarkFailed(ctx, event.EventID, err); markErr != nil {
			r.logger.Warn("Failed to update webhook ledger", zap.String("event_id", event.EventID), zap.Error(markErr))
		}
		metrics.ReplayedEventsTotal.WithLabelValues("decode_error").Inc()
		return false
	}

	r.logger.Info("Replaying webhook event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int("attempts", event.Attempts))

	result := r.processor.Redeliver(ctx, n)
	metrics.ReplayedEventsTotal.WithLabelValues(string(result.Outcome)).Inc()
	return result.Outcome != OutcomeDuplicate
}
