package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/messaging"
	"go.uber.org/zap"
)

const (
	// ActivityChannel receives every recorded activity
	ActivityChannel = "billing.activity"

	randomIDLength = 12
)

// AccountActivityChannel is the per-account fan-out channel.
func AccountActivityChannel(accountID string) string {
	return ActivityChannel + ":" + accountID
}

// ActivityRecorder appends audit records
type ActivityRecorder interface {
	Record(ctx context.Context, accountID *string, activityType, description string, metadata map[string]interface{}) (*entity.ActivityRecord, error)
}

type providerEventKey struct{}

// WithProviderEventID tags records written under ctx with the provider event id.
func WithProviderEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, providerEventKey{}, eventID)
}

func providerEventIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(providerEventKey{}).(string)
	return id
}

// Recorder writes activity records and publishes them on redis when a publisher is set
type Recorder struct {
	activities repository.ActivityRepository
	publisher  messaging.RedisClient
	logger     *zap.Logger
	now        func() time.Time
	randomID   func() string
}

// NewRecorder creates a recorder. publisher may be nil.
func NewRecorder(activities repository.ActivityRepository, publisher messaging.RedisClient, logger *zap.Logger) *Recorder {
	return &Recorder{
		activities: activities,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
		randomID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomIDLength]
		},
	}
}

// Record appends one immutable activity record with a generated id and the current time.
func (r *Recorder) Record(ctx context.Context, accountID *string, activityType, description string, metadata map[string]interface{}) (*entity.ActivityRecord, error) {
	now := r.now().UTC()
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	record := &entity.ActivityRecord{
		EventID:     entity.ActivityEventID(activityType, now, r.randomID()),
		AccountID:   accountID,
		Type:        activityType,
		Description: description,
		Metadata:    metadata,
		Timestamp:   now,
	}
	if id := providerEventIDFrom(ctx); id != "" {
		record.ProviderEventID = &id
	}

	if err := r.activities.Append(ctx, record); err != nil {
		r.logger.Error("Failed to record activity",
			zap.String("type", activityType),
			zap.Stringp("account_id", accountID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}

	r.publish(ctx, record)
	return record, nil
}

func (r *Recorder) publish(ctx context.Context, record *entity.ActivityRecord) {
	if r.publisher == nil {
		return
	}

	channels := []string{ActivityChannel}
	if record.AccountID != nil {
		channels = append(channels, AccountActivityChannel(*record.AccountID))
	}

	for _, channel := range channels {
		if err := r.publisher.Publish(ctx, channel, record); err != nil {
			r.logger.Warn("Failed to publish activity",
				zap.String("channel", channel),
				zap.String("event_id", record.EventID),
				zap.Error(err))
		}
	}
}
