package entity

import (
	"fmt"
	"time"
)

// BillingState is the billing sub-document of an account
type BillingState struct {
	CustomerID            *string    `json:"customer_id,omitempty"`
	CustomerCreatedAt     *time.Time `json:"customer_created_at,omitempty"`
	SubscriptionID        *string    `json:"subscription_id,omitempty"`
	SubscriptionStatus    string     `json:"subscription_status,omitempty"`
	SubscriptionCreatedAt *time.Time `json:"subscription_created_at,omitempty"`
}

// Account is the internal account aggregate. Rows are created at signup and
// only mutated by webhook reconciliation.
type Account struct {
	ID        string       `json:"account_id"`
	Billing   BillingState `json:"billing"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BillingField names one mutable field of BillingState
type BillingField string

const (
	FieldCustomerID            BillingField = "billing.customerId"
	FieldCustomerCreatedAt     BillingField = "billing.customerCreatedAt"
	FieldSubscriptionID        BillingField = "billing.subscriptionId"
	FieldSubscriptionStatus    BillingField = "billing.subscriptionStatus"
	FieldSubscriptionCreatedAt BillingField = "billing.subscriptionCreatedAt"
)

// FieldFamily groups fields that are ordered by the same provider event clock
type FieldFamily string

const (
	FamilyCustomer     FieldFamily = "customer"
	FamilySubscription FieldFamily = "subscription"
)

// Family returns the field family a billing field belongs to.
func (f BillingField) Family() FieldFamily {
	switch f {
	case FieldCustomerID, FieldCustomerCreatedAt:
		return FamilyCustomer
	default:
		return FamilySubscription
	}
}

func (f BillingField) valid() bool {
	switch f {
	case FieldCustomerID, FieldCustomerCreatedAt, FieldSubscriptionID,
		FieldSubscriptionStatus, FieldSubscriptionCreatedAt:
		return true
	}
	return false
}

// EventGuard rejects a write when a newer provider event already touched the family.
type EventGuard struct {
	Family  FieldFamily
	EventAt time.Time
}

// FieldSet is a partial update of an account. Fields in Set are written,
// fields in Unset are removed, everything else is left alone.
type FieldSet struct {
	Set   map[BillingField]interface{}
	Unset []BillingField
	Guard *EventGuard
}

// NewFieldSet returns an empty FieldSet.
func NewFieldSet() *FieldSet {
	return &FieldSet{Set: make(map[BillingField]interface{})}
}

// SetString sets a string field.
func (fs *FieldSet) SetString(field BillingField, value string) *FieldSet {
	fs.Set[field] = value
	return fs
}

// SetTime sets a timestamp field.
func (fs *FieldSet) SetTime(field BillingField, value time.Time) *FieldSet {
	fs.Set[field] = value
	return fs
}

// Remove marks a field for removal.
func (fs *FieldSet) Remove(field BillingField) *FieldSet {
	fs.Unset = append(fs.Unset, field)
	return fs
}

// GuardedBy orders the write against other events of the same family.
func (fs *FieldSet) GuardedBy(family FieldFamily, eventAt time.Time) *FieldSet {
	fs.Guard = &EventGuard{Family: family, EventAt: eventAt}
	return fs
}

// IsEmpty reports whether the set would change nothing.
func (fs *FieldSet) IsEmpty() bool {
	return fs == nil || (len(fs.Set) == 0 && len(fs.Unset) == 0)
}

// Families returns the families touched by the set.
func (fs *FieldSet) Families() []FieldFamily {
	seen := make(map[FieldFamily]bool)
	var out []FieldFamily
	add := func(f BillingField) {
		if fam := f.Family(); !seen[fam] {
			seen[fam] = true
			out = append(out, fam)
		}
	}
	for f := range fs.Set {
		add(f)
	}
	for _, f := range fs.Unset {
		add(f)
	}
	return out
}

// Validate rejects unknown fields, fields both set and removed, and values of the wrong type.
func (fs *FieldSet) Validate() error {
	if fs.IsEmpty() {
		return fmt.Errorf("empty field set")
	}
	for f, v := range fs.Set {
		if !f.valid() {
			return fmt.Errorf("unknown field %q", f)
		}
		switch f {
		case FieldCustomerCreatedAt, FieldSubscriptionCreatedAt:
			if _, ok := v.(time.Time); !ok {
				return fmt.Errorf("field %q expects a time.Time, got %T", f, v)
			}
		default:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("field %q expects a string, got %T", f, v)
			}
		}
	}
	for _, f := range fs.Unset {
		if !f.valid() {
			return fmt.Errorf("unknown field %q", f)
		}
		if _, ok := fs.Set[f]; ok {
			return fmt.Errorf("field %q is both set and removed", f)
		}
	}
	return nil
}
