package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"go.uber.org/zap"
)

const eventTime int64 = 1700000000

type harness struct {
	accounts   *memoryAccounts
	activities *memoryActivities
	lookup     *MockLookup
	handlers   *Handlers
	router     *Router
}

func newHarness(t *testing.T, recordUnassociated bool) *harness {
	t.Helper()
	h := &harness{
		accounts:   newMemoryAccounts("acct_1", "acct_2"),
		activities: &memoryActivities{},
		lookup:     new(MockLookup),
	}
	recorder := NewRecorder(h.activities, nil, zap.NewNop())
	h.handlers = NewHandlers(HandlerDeps{
		Accounts:           h.accounts,
		Lookup:             h.lookup,
		Recorder:           recorder,
		Logger:             zap.NewNop(),
		RecordUnassociated: recordUnassociated,
	})
	h.router = NewRouter(h.handlers.Routes(), zap.NewNop())
	return h
}

func notification(id, eventType string, created int64, object string) *entity.Notification {
	raw := fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":%d,"data":{"object":%s}}`, id, eventType, created, object)
	return &entity.Notification{
		ID:      id,
		Type:    eventType,
		Created: time.Unix(created, 0).UTC(),
		Object:  []byte(object),
		Raw:     []byte(raw),
	}
}

func TestHandlers_EventTable(t *testing.T) {
	tests := []struct {
		name         string
		eventType    string
		object       string
		setup        func(h *harness)
		wantActivity string
		wantAccount  *string
		check        func(t *testing.T, acc *entity.Account)
	}{
		{
			name:         "customer created",
			eventType:    "customer.created",
			object:       `{"id":"cus_1","object":"customer","email":"owner@example.com","metadata":{"account_id":"acct_1"}}`,
			wantActivity: ActivityCustomerCreated,
			wantAccount:  strPtr("acct_1"),
			check: func(t *testing.T, acc *entity.Account) {
				assert.Equal(t, int64(0), acc.Version)
			},
		},
		{
			name:         "customer updated with camelCase metadata key",
			eventType:    "customer.updated",
			object:       `{"id":"cus_1","object":"customer","metadata":{"accountId":"acct_1"}}`,
			wantActivity: ActivityCustomerUpdated,
			wantAccount:  strPtr("acct_1"),
		},
		{
			name:      "customer deleted clears customer fields",
			eventType: "customer.deleted",
			object:    `{"id":"cus_1","object":"customer","deleted":true,"metadata":{"account_id":"acct_1"}}`,
			setup: func(h *harness) {
				created := time.Unix(eventTime-1000, 0)
				cus := "cus_1"
				h.accounts.accounts["acct_1"].Billing.CustomerID = &cus
				h.accounts.accounts["acct_1"].Billing.CustomerCreatedAt = &created
			},
			wantActivity: ActivityCustomerDeleted,
			wantAccount:  strPtr("acct_1"),
			check: func(t *testing.T, acc *entity.Account) {
				assert.Nil(t, acc.Billing.CustomerID)
				assert.Nil(t, acc.Billing.CustomerCreatedAt)
				assert.Equal(t, int64(1), acc.Version)
			},
		},
		{
			name:         "subscription created",
			eventType:    "customer.subscription.created",
			object:       `{"id":"sub_1","object":"subscription","status":"trialing","created":1699999000,"customer":"cus_1","metadata":{"account_id":"acct_1"}}`,
			wantActivity: ActivitySubscriptionCreated,
			wantAccount:  strPtr("acct_1"),
			check: func(t *testing.T, acc *entity.Account) {
				require.NotNil(t, acc.Billing.SubscriptionID)
				assert.Equal(t, "sub_1", *acc.Billing.SubscriptionID)
				assert.Equal(t, "trialing", acc.Billing.SubscriptionStatus)
				require.NotNil(t, acc.Billing.SubscriptionCreatedAt)
				assert.Equal(t, time.Unix(1699999000, 0).UTC(), *acc.Billing.SubscriptionCreatedAt)
			},
		},
		{
			name:         "subscription updated passes status through",
			eventType:    "customer.subscription.updated",
			object:       `{"id":"sub_1","object":"subscription","status":"past_due","metadata":{"account_id":"acct_1"}}`,
			wantActivity: ActivitySubscriptionUpdated,
			wantAccount:  strPtr("acct_1"),
			check: func(t *testing.T, acc *entity.Account) {
				assert.Equal(t, "past_due", acc.Billing.SubscriptionStatus)
				assert.Nil(t, acc.Billing.SubscriptionID)
			},
		},
		{
			name:         "subscription deleted",
			eventType:    "customer.subscription.deleted",
			object:       `{"id":"sub_1","object":"subscription","status":"canceled","metadata":{"account_id":"acct_1"}}`,
			wantActivity: ActivitySubscriptionCanceled,
			wantAccount:  strPtr("acct_1"),
			check: func(t *testing.T, acc *entity.Account) {
				assert.Equal(t, StatusCanceled, acc.Billing.SubscriptionStatus)
			},
		},
		{
			name:      "invoice paid resolved through subscription lookup",
			eventType: "invoice.paid",
			object:    `{"id":"in_1","object":"invoice","subscription":"sub_123","amount_paid":1250,"currency":"usd","status":"paid"}`,
			setup: func(h *harness) {
				h.lookup.On("GetSubscription", mock.Anything, "sub_123").
					Return(&entity.ProviderObject{ID: "sub_123", Metadata: map[string]string{"account_id": "acct_1"}}, nil)
			},
			wantActivity: ActivityInvoicePaid,
			wantAccount:  strPtr("acct_1"),
		},
		{
			name:         "invoice created with account on the invoice itself",
			eventType:    "invoice.created",
			object:       `{"id":"in_2","object":"invoice","subscription":"sub_123","metadata":{"account_id":"acct_2"}}`,
			wantActivity: ActivityInvoiceCreated,
			wantAccount:  strPtr("acct_2"),
		},
		{
			name:      "invoice finalized",
			eventType: "invoice.finalized",
			object:    `{"id":"in_3","object":"invoice","subscription":"sub_9","amount_due":5000,"currency":"krw"}`,
			setup: func(h *harness) {
				h.lookup.On("GetSubscription", mock.Anything, "sub_9").
					Return(&entity.ProviderObject{ID: "sub_9", Metadata: map[string]string{"accountId": "acct_2"}}, nil)
			},
			wantActivity: ActivityInvoiceFinalized,
			wantAccount:  strPtr("acct_2"),
		},
		{
			name:      "invoice payment failed",
			eventType: "invoice.payment_failed",
			object:    `{"id":"in_4","object":"invoice","subscription":"sub_123","amount_due":990,"currency":"usd"}`,
			setup: func(h *harness) {
				h.lookup.On("GetSubscription", mock.Anything, "sub_123").
					Return(&entity.ProviderObject{ID: "sub_123", Metadata: map[string]string{"account_id": "acct_1"}}, nil)
			},
			wantActivity: ActivityInvoicePaymentFailed,
			wantAccount:  strPtr("acct_1"),
		},
		{
			name:      "payment method attached resolved through customer lookup",
			eventType: "payment_method.attached",
			object:    `{"id":"pm_1","object":"payment_method","type":"card","customer":"cus_1","card":{"brand":"visa","last4":"4242"}}`,
			setup: func(h *harness) {
				h.lookup.On("GetCustomer", mock.Anything, "cus_1").
					Return(&entity.ProviderObject{ID: "cus_1", CustomerID: "cus_1", Metadata: map[string]string{"account_id": "acct_1"}}, nil)
			},
			wantActivity: ActivityPaymentMethodAttached,
			wantAccount:  strPtr("acct_1"),
		},
		{
			name:         "payment method detached has no account",
			eventType:    "payment_method.detached",
			object:       `{"id":"pm_1","object":"payment_method","type":"card","customer":null}`,
			wantActivity: ActivityPaymentMethodDetached,
			wantAccount:  nil,
		},
		{
			name:         "checkout completed via client reference id",
			eventType:    "checkout.session.completed",
			object:       `{"id":"cs_1","object":"checkout.session","mode":"subscription","client_reference_id":"acct_2","customer":"cus_2","subscription":"sub_2","amount_total":2000,"currency":"eur"}`,
			wantActivity: ActivityCheckoutCompleted,
			wantAccount:  strPtr("acct_2"),
		},
		{
			name:         "setup intent succeeded",
			eventType:    "setup_intent.succeeded",
			object:       `{"id":"seti_1","object":"setup_intent","customer":"cus_1","payment_method":"pm_1","metadata":{"account_id":"acct_1"}}`,
			wantActivity: ActivitySetupIntentSucceeded,
			wantAccount:  strPtr("acct_1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			if tt.setup != nil {
				tt.setup(h)
			}

			result := h.router.Dispatch(context.Background(), notification("evt_1", tt.eventType, eventTime, tt.object))

			assert.Equal(t, OutcomeOK, result.Outcome, "err: %v", result.Err)
			assert.Equal(t, tt.wantActivity, result.ActivityType)

			records := h.activities.all()
			require.Len(t, records, 1)
			assert.Equal(t, tt.wantActivity, records[0].Type)
			assert.Equal(t, tt.wantAccount, records[0].AccountID)
			assert.NotEmpty(t, records[0].Description)

			if tt.check != nil && tt.wantAccount != nil {
				acc, err := h.accounts.GetAccount(context.Background(), *tt.wantAccount)
				require.NoError(t, err)
				tt.check(t, acc)
			}
			h.lookup.AssertExpectations(t)
		})
	}
}

func TestHandlers_MutationFreeEventsDoNotTouchAccounts(t *testing.T) {
	h := newHarness(t, false)
	h.lookup.On("GetSubscription", mock.Anything, "sub_123").
		Return(&entity.ProviderObject{ID: "sub_123", Metadata: map[string]string{"account_id": "acct_1"}}, nil)

	h.router.Dispatch(context.Background(), notification("evt_1", "customer.created", eventTime,
		`{"id":"cus_1","metadata":{"account_id":"acct_1"}}`))
	h.router.Dispatch(context.Background(), notification("evt_2", "invoice.paid", eventTime,
		`{"id":"in_1","subscription":"sub_123"}`))
	h.router.Dispatch(context.Background(), notification("evt_3", "payment_method.detached", eventTime,
		`{"id":"pm_1"}`))

	assert.Equal(t, 0, h.accounts.updateCount())
	assert.Len(t, h.activities.all(), 3)
}

func TestHandlers_SubscriptionDeletedWithoutPriorSubscription(t *testing.T) {
	h := newHarness(t, false)

	before, err := h.accounts.GetAccount(context.Background(), "acct_1")
	require.NoError(t, err)
	require.Nil(t, before.Billing.SubscriptionID)

	result := h.router.Dispatch(context.Background(), notification("evt_1", "customer.subscription.deleted", eventTime,
		`{"id":"sub_gone","object":"subscription","status":"canceled","metadata":{"account_id":"acct_1"}}`))

	assert.True(t, result.Success())
	acc, err := h.accounts.GetAccount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", acc.Billing.SubscriptionStatus)
	assert.Nil(t, acc.Billing.SubscriptionID)

	records := h.activities.all()
	require.Len(t, records, 1)
	assert.Equal(t, "billing.subscription.canceled", records[0].Type)
	assert.Equal(t, "acct_1", *records[0].AccountID)
}

func TestHandlers_InvoicePaidLookupFailure(t *testing.T) {
	tests := []struct {
		name        string
		lookupErr   error
		wantOutcome Outcome
	}{
		{"network error", errors.New("dial tcp: i/o timeout"), OutcomeRetryable},
		{"subscription not found", fmt.Errorf("subscription sub_123: %w", domainErrors.ErrLookupNotFound), OutcomeSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			h.lookup.On("GetSubscription", mock.Anything, "sub_123").Return(nil, tt.lookupErr)

			result := h.router.Dispatch(context.Background(), notification("evt_1", "invoice.paid", eventTime,
				`{"id":"in_1","object":"invoice","subscription":"sub_123"}`))

			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.Empty(t, h.activities.all())
			assert.Equal(t, 0, h.accounts.updateCount())
		})
	}
}

func TestHandlers_UnresolvedAccount(t *testing.T) {
	objects := map[string]string{
		"customer.subscription.updated": `{"id":"sub_1","status":"active"}`,
		"invoice.paid":                  `{"id":"in_1"}`,
		"checkout.session.completed":    `{"id":"cs_1","metadata":{}}`,
		"payment_method.attached":       `{"id":"pm_1","customer":"cus_deleted"}`,
	}

	t.Run("silent by default", func(t *testing.T) {
		for eventType, object := range objects {
			h := newHarness(t, false)
			h.lookup.On("GetCustomer", mock.Anything, "cus_deleted").
				Return(&entity.ProviderObject{ID: "cus_deleted", Deleted: true}, nil)

			result := h.router.Dispatch(context.Background(), notification("evt_1", eventType, eventTime, object))
			assert.Equal(t, OutcomeSkipped, result.Outcome, eventType)
			assert.ErrorIs(t, result.Err, domainErrors.ErrAccountUnresolved, eventType)
			assert.Empty(t, h.activities.all(), eventType)
			assert.Equal(t, 0, h.accounts.updateCount(), eventType)
		}
	})

	t.Run("recorded when enabled", func(t *testing.T) {
		h := newHarness(t, true)

		result := h.router.Dispatch(context.Background(), notification("evt_1", "customer.subscription.updated", eventTime,
			objects["customer.subscription.updated"]))

		assert.Equal(t, OutcomeSkipped, result.Outcome)
		records := h.activities.all()
		require.Len(t, records, 1)
		assert.Equal(t, ActivityUnassociated, records[0].Type)
		assert.Nil(t, records[0].AccountID)
		assert.Equal(t, "customer.subscription.updated", records[0].Metadata["eventType"])
		assert.Equal(t, "sub_1", records[0].Metadata["objectId"])
	})
}

func TestHandlers_FailureSemantics(t *testing.T) {
	subUpdated := `{"id":"sub_1","status":"active","metadata":{"account_id":"acct_1"}}`

	t.Run("account store failure is retryable and writes no record", func(t *testing.T) {
		h := newHarness(t, false)
		h.accounts.err = errors.New("connection reset by peer")

		result := h.router.Dispatch(context.Background(), notification("evt_1", "customer.subscription.updated", eventTime, subUpdated))

		assert.Equal(t, OutcomeRetryable, result.Outcome)
		assert.Empty(t, h.activities.all())
	})

	t.Run("unknown account is permanent but still audited", func(t *testing.T) {
		h := newHarness(t, false)

		result := h.router.Dispatch(context.Background(), notification("evt_1", "customer.subscription.updated", eventTime,
			`{"id":"sub_1","status":"active","metadata":{"account_id":"acct_missing"}}`))

		assert.Equal(t, OutcomePermanent, result.Outcome)
		assert.ErrorIs(t, result.Err, domainErrors.ErrAccountNotFound)
		assert.Len(t, h.activities.all(), 1)
	})

	t.Run("recorder failure is retryable", func(t *testing.T) {
		h := newHarness(t, false)
		h.activities.err = errors.New("table unavailable")

		result := h.router.Dispatch(context.Background(), notification("evt_1", "customer.subscription.updated", eventTime, subUpdated))

		assert.Equal(t, OutcomeRetryable, result.Outcome)
		acc, _ := h.accounts.GetAccount(context.Background(), "acct_1")
		assert.Equal(t, "active", acc.Billing.SubscriptionStatus)
	})

	t.Run("undecodable object is permanent", func(t *testing.T) {
		h := newHarness(t, false)

		result := h.router.Dispatch(context.Background(), notification("evt_1", "customer.subscription.updated", eventTime, `"not an object`))

		assert.Equal(t, OutcomePermanent, result.Outcome)
		assert.Empty(t, h.activities.all())
	})

	t.Run("missing object is permanent", func(t *testing.T) {
		h := newHarness(t, false)
		n := notification("evt_1", "customer.subscription.updated", eventTime, `{}`)
		n.Object = nil

		result := h.router.Dispatch(context.Background(), n)
		assert.Equal(t, OutcomePermanent, result.Outcome)
	})
}

func TestHandlers_OutOfOrderSubscriptionEvents(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	newer := notification("evt_2", "customer.subscription.updated", eventTime+60,
		`{"id":"sub_1","status":"past_due","metadata":{"account_id":"acct_1"}}`)
	older := notification("evt_1", "customer.subscription.updated", eventTime,
		`{"id":"sub_1","status":"active","metadata":{"account_id":"acct_1"}}`)

	assert.Equal(t, OutcomeOK, h.router.Dispatch(ctx, newer).Outcome)
	result := h.router.Dispatch(ctx, older)

	assert.Equal(t, OutcomeOK, result.Outcome)
	acc, err := h.accounts.GetAccount(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, "past_due", acc.Billing.SubscriptionStatus)
	assert.Len(t, h.activities.all(), 2)
}

func TestHandlers_RedeliveryIsIdempotent(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	n := notification("evt_1", "customer.subscription.created", eventTime,
		`{"id":"sub_1","status":"active","created":1699999000,"metadata":{"account_id":"acct_1"}}`)

	h.router.Dispatch(ctx, n)
	first, err := h.accounts.GetAccount(ctx, "acct_1")
	require.NoError(t, err)

	h.router.Dispatch(ctx, n)
	second, err := h.accounts.GetAccount(ctx, "acct_1")
	require.NoError(t, err)

	assert.Equal(t, first.Billing, second.Billing)
}

func TestHandlers_ConcurrentDisjointUpdates(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, false)
		ctx := context.Background()
		cus := "cus_1"
		h.accounts.accounts["acct_1"].Billing.CustomerID = &cus

		events := []*entity.Notification{
			notification("evt_a", "customer.subscription.updated", eventTime,
				`{"id":"sub_1","status":"active","metadata":{"account_id":"acct_1"}}`),
			notification("evt_b", "customer.deleted", eventTime,
				`{"id":"cus_1","metadata":{"account_id":"acct_1"}}`),
		}
		if i%2 == 1 {
			events[0], events[1] = events[1], events[0]
		}

		var wg sync.WaitGroup
		for _, n := range events {
			wg.Add(1)
			go func(n *entity.Notification) {
				defer wg.Done()
				h.router.Dispatch(ctx, n)
			}(n)
		}
		wg.Wait()

		acc, err := h.accounts.GetAccount(ctx, "acct_1")
		require.NoError(t, err)
		assert.Equal(t, "active", acc.Billing.SubscriptionStatus)
		assert.Nil(t, acc.Billing.CustomerID)
		assert.Equal(t, int64(2), acc.Version)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{1250, "usd", "12.50 USD"},
		{5, "eur", "0.05 EUR"},
		{5000, "krw", "5000 KRW"},
		{100, "JPY", "100 JPY"},
		{0, "usd", "0.00 USD"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAmount(tt.amount, stripe.Currency(tt.currency)))
	}
}

func strPtr(s string) *string {
	return &s
}
