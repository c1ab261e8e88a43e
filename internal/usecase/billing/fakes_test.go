package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/messaging"
)

// memoryAccounts applies field sets the way the SQL adapter does, including the event-time guard.
type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]*entity.Account
	eventAt  map[string]map[entity.FieldFamily]time.Time
	updates  int
	err      error
}

func newMemoryAccounts(ids ...string) *memoryAccounts {
	m := &memoryAccounts{
		accounts: map[string]*entity.Account{},
		eventAt:  map[string]map[entity.FieldFamily]time.Time{},
	}
	for _, id := range ids {
		m.accounts[id] = &entity.Account{ID: id}
		m.eventAt[id] = map[entity.FieldFamily]time.Time{}
	}
	return m
}

func (m *memoryAccounts) GetAccount(_ context.Context, id string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, domainErrors.ErrAccountNotFound
	}
	copied := *acc
	return &copied, nil
}

func (m *memoryAccounts) UpdateAccount(_ context.Context, id string, fields *entity.FieldSet) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++

	if m.err != nil {
		return m.err
	}
	acc, ok := m.accounts[id]
	if !ok {
		return domainErrors.ErrAccountNotFound
	}

	if g := fields.Guard; g != nil {
		if last, seen := m.eventAt[id][g.Family]; seen && last.After(g.EventAt) {
			return domainErrors.ErrStaleUpdate
		}
		m.eventAt[id][g.Family] = g.EventAt
	}

	for f, v := range fields.Set {
		switch f {
		case entity.FieldCustomerID:
			s := v.(string)
			acc.Billing.CustomerID = &s
		case entity.FieldCustomerCreatedAt:
			t := v.(time.Time)
			acc.Billing.CustomerCreatedAt = &t
		case entity.FieldSubscriptionID:
			s := v.(string)
			acc.Billing.SubscriptionID = &s
		case entity.FieldSubscriptionStatus:
			acc.Billing.SubscriptionStatus = v.(string)
		case entity.FieldSubscriptionCreatedAt:
			t := v.(time.Time)
			acc.Billing.SubscriptionCreatedAt = &t
		}
	}
	for _, f := range fields.Unset {
		switch f {
		case entity.FieldCustomerID:
			acc.Billing.CustomerID = nil
		case entity.FieldCustomerCreatedAt:
			acc.Billing.CustomerCreatedAt = nil
		case entity.FieldSubscriptionID:
			acc.Billing.SubscriptionID = nil
		case entity.FieldSubscriptionStatus:
			acc.Billing.SubscriptionStatus = ""
		case entity.FieldSubscriptionCreatedAt:
			acc.Billing.SubscriptionCreatedAt = nil
		}
	}
	acc.Version++
	acc.UpdatedAt = time.Now()
	return nil
}

func (m *memoryAccounts) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

type memoryActivities struct {
	mu      sync.Mutex
	records []*entity.ActivityRecord
	err     error
}

func (m *memoryActivities) Append(_ context.Context, record *entity.ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memoryActivities) List(_ context.Context, filter entity.ActivityFilter) ([]*entity.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ActivityRecord
	for _, r := range m.records {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryActivities) all() []*entity.ActivityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.ActivityRecord(nil), m.records...)
}

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) GetSubscription(ctx context.Context, id string) (*entity.ProviderObject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProviderObject), args.Error(1)
}

func (m *MockLookup) GetCustomer(ctx context.Context, id string) (*entity.ProviderObject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProviderObject), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockPublisher) Subscribe(ctx context.Context, channel string) (<-chan messaging.Message, error) {
	args := m.Called(ctx, channel)
	return nil, args.Error(1)
}

func (m *MockPublisher) Close() error {
	return nil
}

// memoryLedger mimics the webhook event table
type memoryLedger struct {
	mu       sync.Mutex
	events   map[string]*entity.WebhookEvent
	saveErr  error
	claimErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{events: map[string]*entity.WebhookEvent{}}
}

func (l *memoryLedger) SaveEvent(_ context.Context, n *entity.Notification) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return false, l.saveErr
	}
	if _, ok := l.events[n.ID]; ok {
		return false, nil
	}
	l.events[n.ID] = &entity.WebhookEvent{
		EventID:   n.ID,
		EventType: n.Type,
		Status:    entity.WebhookEventPending,
		Payload:   n.Raw,
		CreatedAt: time.Now(),
	}
	return true, nil
}

func (l *memoryLedger) GetEvent(_ context.Context, id string) (*entity.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.events[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (l *memoryLedger) ClaimEvent(_ context.Context, id string, includeCompleted bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.claimErr != nil {
		return false, l.claimErr
	}
	e, ok := l.events[id]
	if !ok {
		return false, nil
	}
	now := time.Now()
	switch e.Status {
	case entity.WebhookEventPending, entity.WebhookEventFailed:
	case entity.WebhookEventCompleted:
		if !includeCompleted {
			return false, nil
		}
	case entity.WebhookEventProcessing:
		if e.NextRetryAt == nil || e.NextRetryAt.After(now) {
			return false, nil
		}
	default:
		return false, nil
	}
	lease := now.Add(10 * time.Minute)
	e.Status = entity.WebhookEventProcessing
	e.NextRetryAt = &lease
	return true, nil
}

func (l *memoryLedger) MarkProcessed(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.events[id]
	if !ok {
		return fmt.Errorf("webhook event not found: %s", id)
	}
	e.Status = entity.WebhookEventCompleted
	e.NextRetryAt = nil
	return nil
}

func (l *memoryLedger) MarkFailed(_ context.Context, id string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.events[id]
	if !ok {
		return fmt.Errorf("webhook event not found: %s", id)
	}
	msg := cause.Error()
	due := time.Now().Add(-time.Second)
	e.Status = entity.WebhookEventFailed
	e.Attempts++
	e.LastError = &msg
	e.NextRetryAt = &due
	return nil
}

func (l *memoryLedger) GetRetryableEvents(_ context.Context, limit, maxAttempts int) ([]*entity.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*entity.WebhookEvent
	for _, e := range l.events {
		retryable := e.Status == entity.WebhookEventFailed || e.Status == entity.WebhookEventProcessing
		if retryable && e.Attempts < maxAttempts && e.NextRetryAt != nil && !e.NextRetryAt.After(time.Now()) {
			copied := *e
			out = append(out, &copied)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *memoryLedger) status(id string) entity.WebhookEventStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.events[id]; ok {
		return e.Status
	}
	return ""
}
