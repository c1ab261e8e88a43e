package entity

import "time"

// WebhookEventStatus is the processing state of a ledger entry
type WebhookEventStatus string

const (
	WebhookEventPending    WebhookEventStatus = "pending"
	WebhookEventProcessing WebhookEventStatus = "processing"
	WebhookEventCompleted  WebhookEventStatus = "completed"
	WebhookEventFailed     WebhookEventStatus = "failed"
)

// WebhookEvent is the ledger entry kept per provider event id
type WebhookEvent struct {
	EventID     string
	EventType   string
	Status      WebhookEventStatus
	Attempts    int
	LastError   *string
	NextRetryAt *time.Time
	Payload     []byte
	CreatedAt   time.Time
}
