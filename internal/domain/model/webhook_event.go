package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

// WebhookStatus represents the processing status of a webhook
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = WebhookStatus(entity.WebhookEventPending)
	WebhookStatusProcessing WebhookStatus = WebhookStatus(entity.WebhookEventProcessing)
	WebhookStatusCompleted  WebhookStatus = WebhookStatus(entity.WebhookEventCompleted)
	WebhookStatusFailed     WebhookStatus = WebhookStatus(entity.WebhookEventFailed)
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// StripeWebhookEvent is the ledger row for one provider event
type StripeWebhookEvent struct {
	ID                 int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	StripeEventID      string        `gorm:"unique;not null;size:255;index" json:"stripe_event_id"`
	EventType          string        `gorm:"not null;size:100;index" json:"event_type"`
	Status             WebhookStatus `gorm:"type:webhook_status;default:'pending';index" json:"status"`
	ProcessedAt        *time.Time    `json:"processed_at,omitempty"`
	Data               JSONB         `gorm:"type:jsonb;not null" json:"data"`
	APIVersion         *string       `gorm:"size:20" json:"api_version,omitempty"`
	ProcessingAttempts int           `gorm:"default:0" json:"processing_attempts"`
	LastError          *string       `json:"last_error,omitempty"`
	NextRetryAt        *time.Time    `json:"next_retry_at,omitempty"`
	CreatedAt          time.Time     `gorm:"default:now()" json:"created_at"`
	StripeCreatedAt    *time.Time    `json:"stripe_created_at,omitempty"`
}

// TableName specifies the table name for GORM
func (StripeWebhookEvent) TableName() string {
	return "stripe_webhook_events"
}

// ToEntity converts the row to a ledger entry. The payload is the stored event JSON.
func (e *StripeWebhookEvent) ToEntity() *entity.WebhookEvent {
	payload, _ := json.Marshal(e.Data)
	return &entity.WebhookEvent{
		EventID:     e.StripeEventID,
		EventType:   e.EventType,
		Status:      entity.WebhookEventStatus(e.Status),
		Attempts:    e.ProcessingAttempts,
		LastError:   e.LastError,
		NextRetryAt: e.NextRetryAt,
		Payload:     payload,
		CreatedAt:   e.CreatedAt,
	}
}
