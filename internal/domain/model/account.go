package model

import (
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

// Account is the persisted account row. The billing sub-document is flattened
// into billing_* columns.
type Account struct {
	AccountID                    string     `gorm:"column:account_id;primaryKey;size:100" json:"account_id"`
	BillingCustomerID            *string    `gorm:"column:billing_customer_id;size:100;index" json:"billing_customer_id,omitempty"`
	BillingCustomerCreatedAt     *time.Time `gorm:"column:billing_customer_created_at" json:"billing_customer_created_at,omitempty"`
	BillingCustomerEventAt       *time.Time `gorm:"column:billing_customer_event_at" json:"-"`
	BillingSubscriptionID        *string    `gorm:"column:billing_subscription_id;size:100;index" json:"billing_subscription_id,omitempty"`
	BillingSubscriptionStatus    *string    `gorm:"column:billing_subscription_status;size:50" json:"billing_subscription_status,omitempty"`
	BillingSubscriptionCreatedAt *time.Time `gorm:"column:billing_subscription_created_at" json:"billing_subscription_created_at,omitempty"`
	BillingSubscriptionEventAt   *time.Time `gorm:"column:billing_subscription_event_at" json:"-"`
	Version                      int64      `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt                    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt                    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// BillingColumns maps billing fields to their columns
var BillingColumns = map[entity.BillingField]string{
	entity.FieldCustomerID:            "billing_customer_id",
	entity.FieldCustomerCreatedAt:     "billing_customer_created_at",
	entity.FieldSubscriptionID:        "billing_subscription_id",
	entity.FieldSubscriptionStatus:    "billing_subscription_status",
	entity.FieldSubscriptionCreatedAt: "billing_subscription_created_at",
}

// FamilyEventColumns maps a field family to the column holding its last applied event time
var FamilyEventColumns = map[entity.FieldFamily]string{
	entity.FamilyCustomer:     "billing_customer_event_at",
	entity.FamilySubscription: "billing_subscription_event_at",
}

// ToEntity converts the row to the domain aggregate.
func (a *Account) ToEntity() *entity.Account {
	acc := &entity.Account{
		ID:        a.AccountID,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt,
		Billing: entity.BillingState{
			CustomerID:            a.BillingCustomerID,
			CustomerCreatedAt:     a.BillingCustomerCreatedAt,
			SubscriptionID:        a.BillingSubscriptionID,
			SubscriptionCreatedAt: a.BillingSubscriptionCreatedAt,
		},
	}
	if a.BillingSubscriptionStatus != nil {
		acc.Billing.SubscriptionStatus = *a.BillingSubscriptionStatus
	}
	return acc
}
