package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/model"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxRetryDelay = 24 * time.Hour
	// claimLease is how long a processing claim holds before the row may be taken over
	claimLease = 10 * time.Minute
)

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookRepository creates a new webhook event ledger
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookEventRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// RetryDelay returns the wait after a failure given how many attempts had
// already failed before it: 5, 10, 20, 40 minutes and so on, capped at a day.
func RetryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		return maxRetryDelay
	}
	delay := time.Duration(5*(1<<attempts)) * time.Minute
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

// SaveEvent saves a new webhook event
func (r *webhookRepository) SaveEvent(ctx context.Context, n *entity.Notification) (bool, error) {
	var eventData map[string]interface{}
	if err := json.Unmarshal(n.Raw, &eventData); err != nil {
		r.logger.Warn("Failed to parse event data",
			zap.String("event_id", n.ID),
			zap.Error(err))
		eventData = map[string]interface{}{}
	}

	event := &model.StripeWebhookEvent{
		StripeEventID: n.ID,
		EventType:     n.Type,
		Status:        model.WebhookStatusPending,
		Data:          model.JSONB(eventData),
	}
	if n.APIVersion != "" {
		apiVersion := n.APIVersion
		event.APIVersion = &apiVersion
	}
	if !n.Created.IsZero() {
		created := n.Created
		event.StripeCreatedAt = &created
	}

	// Duplicate deliveries leave the existing row untouched
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)

	if result.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", n.ID),
			zap.String("event_type", n.Type),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to save webhook event: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetEvent retrieves a webhook event by ID. A missing event yields nil, nil.
func (r *webhookRepository) GetEvent(ctx context.Context, eventID string) (*entity.WebhookEvent, error) {
	var event model.StripeWebhookEvent

	err := r.db.WithContext(ctx).
		Where("stripe_event_id = ?", eventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return event.ToEntity(), nil
}

// ClaimEvent moves the event to processing if no other worker holds it.
// Pending and failed rows can be claimed, as can a processing row whose lease
// has expired. Completed rows are claimable only when includeCompleted is set.
func (r *webhookRepository) ClaimEvent(ctx context.Context, eventID string, includeCompleted bool) (bool, error) {
	now := r.now()
	lease := now.Add(claimLease)

	claimable := []model.WebhookStatus{model.WebhookStatusPending, model.WebhookStatusFailed}
	if includeCompleted {
		claimable = append(claimable, model.WebhookStatusCompleted)
	}

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ? AND (status IN ? OR (status = ? AND next_retry_at <= ?))",
			eventID, claimable, model.WebhookStatusProcessing, now).
		Updates(map[string]interface{}{
			"status":        model.WebhookStatusProcessing,
			"next_retry_at": &lease,
		})

	if result.Error != nil {
		r.logger.Error("Failed to claim webhook event",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to claim webhook event: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// MarkProcessed marks a webhook event as processed
func (r *webhookRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := r.now()

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":        model.WebhookStatusCompleted,
			"processed_at":  &now,
			"next_retry_at": gorm.Expr("NULL"),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as processed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as processed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}

	return nil
}

// MarkFailed records a retryable failure and schedules the next attempt
func (r *webhookRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	var event model.StripeWebhookEvent
	if err := r.db.WithContext(ctx).
		Where("stripe_event_id = ?", eventID).
		First(&event).Error; err != nil {
		r.logger.Error("Failed to get webhook event for failure update",
			zap.String("event_id", eventID),
			zap.Error(err))
		return fmt.Errorf("failed to get webhook event: %w", err)
	}

	nextRetry := r.now().Add(RetryDelay(event.ProcessingAttempts))
	attempts := event.ProcessingAttempts + 1

	errorMsg := "unknown error"
	if cause != nil {
		errorMsg = cause.Error()
	}

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":              model.WebhookStatusFailed,
			"processing_attempts": attempts,
			"last_error":          &errorMsg,
			"next_retry_at":       &nextRetry,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as failed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as failed: %w", result.Error)
	}

	return nil
}

// GetRetryableEvents returns failed events whose retry time has passed, and
// processing events whose claim lease expired, that have not exhausted their
// attempts, oldest first.
func (r *webhookRepository) GetRetryableEvents(ctx context.Context, limit, maxAttempts int) ([]*entity.WebhookEvent, error) {
	var rows []*model.StripeWebhookEvent

	query := r.db.WithContext(ctx).
		Where("status IN ? AND next_retry_at <= ? AND processing_attempts < ?",
			[]model.WebhookStatus{model.WebhookStatusFailed, model.WebhookStatusProcessing},
			r.now(),
			maxAttempts).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&rows).Error; err != nil {
		r.logger.Error("Failed to get retryable webhook events",
			zap.Error(err))
		return nil, fmt.Errorf("failed to get retryable webhook events: %w", err)
	}

	events := make([]*entity.WebhookEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.ToEntity())
	}
	return events, nil
}
