package model

import (
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

// ActivityRecord is an append-only audit row
type ActivityRecord struct {
	EventID         string    `gorm:"column:event_id;primaryKey;size:255" json:"event_id"`
	AccountID       *string   `gorm:"column:account_id;size:100;index" json:"account_id"`
	Type            string    `gorm:"column:type;not null;size:100;index:idx_activity_records_type_timestamp,priority:1" json:"type"`
	Description     string    `gorm:"column:description;type:text" json:"description"`
	Metadata        JSONB     `gorm:"column:metadata;type:jsonb" json:"metadata"`
	ProviderEventID *string   `gorm:"column:provider_event_id;size:255;index" json:"provider_event_id,omitempty"`
	Timestamp       time.Time `gorm:"column:timestamp;not null;index:idx_activity_records_type_timestamp,priority:2" json:"timestamp"`
}

// TableName specifies the table name for GORM
func (ActivityRecord) TableName() string {
	return "activity_records"
}

// NewActivityRecord converts a domain record into a row.
func NewActivityRecord(r *entity.ActivityRecord) *ActivityRecord {
	return &ActivityRecord{
		EventID:         r.EventID,
		AccountID:       r.AccountID,
		Type:            r.Type,
		Description:     r.Description,
		Metadata:        JSONB(r.Metadata),
		ProviderEventID: r.ProviderEventID,
		Timestamp:       r.Timestamp,
	}
}

// ToEntity converts the row to a domain record.
func (a *ActivityRecord) ToEntity() *entity.ActivityRecord {
	return &entity.ActivityRecord{
		EventID:         a.EventID,
		AccountID:       a.AccountID,
		Type:            a.Type,
		Description:     a.Description,
		Metadata:        map[string]interface{}(a.Metadata),
		ProviderEventID: a.ProviderEventID,
		Timestamp:       a.Timestamp,
	}
}
