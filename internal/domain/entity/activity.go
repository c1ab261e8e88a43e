package entity

import (
	"fmt"
	"time"
)

// ActivityRecord is one immutable audit entry
type ActivityRecord struct {
	EventID         string                 `json:"event_id"`
	AccountID       *string                `json:"account_id"`
	Type            string                 `json:"type"`
	Description     string                 `json:"description"`
	Metadata        map[string]interface{} `json:"metadata"`
	ProviderEventID *string                `json:"provider_event_id,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// ActivityEventID builds the record id as {type}-{unix millis}-{random}.
func ActivityEventID(activityType string, at time.Time, random string) string {
	return fmt.Sprintf("%s-%d-%s", activityType, at.UnixMilli(), random)
}

// ActivityFilter selects audit records. Zero values mean "any".
type ActivityFilter struct {
	Type      string
	AccountID string
	Since     time.Time
	Until     time.Time
	Limit     int
}
