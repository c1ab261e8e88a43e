package entity

import (
	"encoding/json"
	"time"
)

// Notification is an authenticated inbound provider event. It only lives for
// the duration of one request (or one replay attempt).
type Notification struct {
	ID         string
	Type       string
	Created    time.Time
	Livemode   bool
	APIVersion string
	// Object is data.object of the event, undecoded
	Object json.RawMessage
	// Raw is the verified request body
	Raw []byte
}

// ProviderObject is the subset of a provider subscription or customer needed
// to resolve account ownership.
type ProviderObject struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Deleted    bool              `json:"deleted,omitempty"`
}
