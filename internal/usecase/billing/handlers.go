package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/provider"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"go.uber.org/zap"
)

// Activity types written to the audit trail
const (
	ActivityCustomerCreated       = "billing.customer.created"
	ActivityCustomerUpdated       = "billing.customer.updated"
	ActivityCustomerDeleted       = "billing.customer.deleted"
	ActivitySubscriptionCreated   = "billing.subscription.created"
	ActivitySubscriptionUpdated   = "billing.subscription.updated"
	ActivitySubscriptionCanceled  = "billing.subscription.canceled"
	ActivityInvoiceCreated        = "billing.invoice.created"
	ActivityInvoiceFinalized      = "billing.invoice.finalized"
	ActivityInvoicePaid           = "billing.invoice.paid"
	ActivityInvoicePaymentFailed  = "billing.invoice.payment_failed"
	ActivityPaymentMethodAttached = "billing.payment_method.attached"
	ActivityPaymentMethodDetached = "billing.payment_method.detached"
	ActivityCheckoutCompleted     = "billing.checkout.completed"
	ActivitySetupIntentSucceeded  = "billing.setup_intent.succeeded"
	ActivityUnassociated          = "billing.unassociated"

	// StatusCanceled is written on subscription deletion
	StatusCanceled = "canceled"
)

// Stripe currencies without minor units
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// HandlerDeps are the collaborators of the handler set
type HandlerDeps struct {
	Accounts repository.AccountRepository
	Lookup   provider.Lookup
	Recorder ActivityRecorder
	Logger   *zap.Logger
	// RecordUnassociated writes a billing.unassociated record for events
	// whose account cannot be resolved instead of dropping them silently.
	RecordUnassociated bool
}

// Handlers holds one handler per supported event type
type Handlers struct {
	accounts           repository.AccountRepository
	lookup             provider.Lookup
	recorder           ActivityRecorder
	logger             *zap.Logger
	recordUnassociated bool
}

func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{
		accounts:           deps.Accounts,
		lookup:             deps.Lookup,
		recorder:           deps.Recorder,
		logger:             deps.Logger,
		recordUnassociated: deps.RecordUnassociated,
	}
}

// Routes returns the dispatch table. New event types are added here.
func (h *Handlers) Routes() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		string(stripe.EventTypeCustomerCreated):             h.customerChanged(ActivityCustomerCreated, "Customer created"),
		string(stripe.EventTypeCustomerUpdated):             h.customerChanged(ActivityCustomerUpdated, "Customer updated"),
		string(stripe.EventTypeCustomerDeleted):             h.CustomerDeleted,
		string(stripe.EventTypeCustomerSubscriptionCreated): h.SubscriptionCreated,
		string(stripe.EventTypeCustomerSubscriptionUpdated): h.SubscriptionUpdated,
		string(stripe.EventTypeCustomerSubscriptionDeleted): h.SubscriptionDeleted,
		string(stripe.EventTypeInvoiceCreated):              h.invoiceEvent(ActivityInvoiceCreated, "Invoice created"),
		string(stripe.EventTypeInvoiceFinalized):            h.invoiceEvent(ActivityInvoiceFinalized, "Invoice finalized"),
		string(stripe.EventTypeInvoicePaid):                 h.invoiceEvent(ActivityInvoicePaid, "Invoice paid"),
		string(stripe.EventTypeInvoicePaymentFailed):        h.invoiceEvent(ActivityInvoicePaymentFailed, "Invoice payment failed"),
		string(stripe.EventTypePaymentMethodAttached):       h.PaymentMethodAttached,
		string(stripe.EventTypePaymentMethodDetached):       h.PaymentMethodDetached,
		string(stripe.EventTypeCheckoutSessionCompleted):    h.CheckoutSessionCompleted,
		string(stripe.EventTypeSetupIntentSucceeded):        h.SetupIntentSucceeded,
	}
}

func (h *Handlers) customerChanged(activityType, description string) HandlerFunc {
	return func(ctx context.Context, n *entity.Notification) Result {
		var cus stripe.Customer
		if err := decodeObject(n, &cus); err != nil {
			return h.decodeFailed(n, err)
		}

		accountID := accountFromMetadata(cus.Metadata)
		if accountID == nil {
			return h.unassociated(ctx, n, cus.ID, domainErrors.ErrAccountUnresolved)
		}

		return h.apply(ctx, n, *accountID, nil, activityType, description, map[string]interface{}{
			"customerId": cus.ID,
			"email":      cus.Email,
		})
	}
}

// CustomerDeleted removes the customer reference from the account.
func (h *Handlers) CustomerDeleted(ctx context.Context, n *entity.Notification) Result {
	var cus stripe.Customer
	if err := decodeObject(n, &cus); err != nil {
		return h.decodeFailed(n, err)
	}

	accountID := accountFromMetadata(cus.Metadata)
	if accountID == nil {
		return h.unassociated(ctx, n, cus.ID, domainErrors.ErrAccountUnresolved)
	}

	fields := entity.NewFieldSet().
		Remove(entity.FieldCustomerID).
		Remove(entity.FieldCustomerCreatedAt).
		GuardedBy(entity.FamilyCustomer, n.Created)

	return h.apply(ctx, n, *accountID, fields, ActivityCustomerDeleted, "Customer deleted", map[string]interface{}{
		"customerId": cus.ID,
	})
}

// SubscriptionCreated stores the new subscription on the account. The creation
// time comes from the provider so redelivery writes the same values.
func (h *Handlers) SubscriptionCreated(ctx context.Context, n *entity.Notification) Result {
	var sub stripe.Subscription
	if err := decodeObject(n, &sub); err != nil {
		return h.decodeFailed(n, err)
	}

	accountID := accountFromMetadata(sub.Metadata)
	if accountID == nil {
		return h.unassociated(ctx, n, sub.ID, domainErrors.ErrAccountUnresolved)
	}

	createdAt := n.Created
	if sub.Created > 0 {
		createdAt = time.Unix(sub.Created, 0).UTC()
	}

	fields := entity.NewFieldSet().
		SetString(entity.FieldSubscriptionID, sub.ID).
		SetString(entity.FieldSubscriptionStatus, string(sub.Status)).
		SetTime(entity.FieldSubscriptionCreatedAt, createdAt).
		GuardedBy(entity.FamilySubscription, n.Created)

	description := fmt.Sprintf("Subscription created (%s)", sub.Status)
	return h.apply(ctx, n, *accountID, fields, ActivitySubscriptionCreated, description, subscriptionMetadata(&sub))
}

// SubscriptionUpdated copies the provider status verbatim.
func (h *Handlers) SubscriptionUpdated(ctx context.Context, n *entity.Notification) Result {
	var sub stripe.Subscription
	if err := decodeObject(n, &sub); err != nil {
		return h.decodeFailed(n, err)
	}

	accountID := accountFromMetadata(sub.Metadata)
	if accountID == nil {
		return h.unassociated(ctx, n, sub.ID, domainErrors.ErrAccountUnresolved)
	}

	fields := entity.NewFieldSet().
		SetString(entity.FieldSubscriptionStatus, string(sub.Status)).
		GuardedBy(entity.FamilySubscription, n.Created)

	description := fmt.Sprintf("Subscription updated (%s)", sub.Status)
	return h.apply(ctx, n, *accountID, fields, ActivitySubscriptionUpdated, description, subscriptionMetadata(&sub))
}

// SubscriptionDeleted marks the subscription canceled. The account is kept and
// no prior subscription is required.
func (h *Handlers) SubscriptionDeleted(ctx context.Context, n *entity.Notification) Result {
	var sub stripe.Subscription
	if err := decodeObject(n, &sub); err != nil {
		return h.decodeFailed(n, err)
	}

	accountID := accountFromMetadata(sub.Metadata)
	if accountID == nil {
		return h.unassociated(ctx, n, sub.ID, domainErrors.ErrAccountUnresolved)
	}

	fields := entity.NewFieldSet().
		SetString(entity.FieldSubscriptionStatus, StatusCanceled).
		GuardedBy(entity.FamilySubscription, n.Created)

	metadata := subscriptionMetadata(&sub)
	metadata["status"] = StatusCanceled
	return h.apply(ctx, n, *accountID, fields, ActivitySubscriptionCanceled, "Subscription canceled", metadata)
}

func (h *Handlers) invoiceEvent(activityType, description string) HandlerFunc {
	return func(ctx context.Context, n *entity.Notification) Result {
		var inv stripe.Invoice
		if err := decodeObject(n, &inv); err != nil {
			return h.decodeFailed(n, err)
		}

		subscriptionID := ""
		if inv.Subscription != nil {
			subscriptionID = inv.Subscription.ID
		}

		accountID := accountFromMetadata(inv.Metadata)
		if accountID == nil {
			id, err := h.accountForSubscription(ctx, subscriptionID)
			if err != nil {
				return h.resolveFailed(ctx, n, inv.ID, err)
			}
			accountID = &id
		}

		metadata := map[string]interface{}{
			"invoiceId":      inv.ID,
			"subscriptionId": subscriptionID,
			"status":         string(inv.Status),
			"currency":       string(inv.Currency),
			"amountDue":      inv.AmountDue,
			"amountPaid":     inv.AmountPaid,
		}
		if inv.Number != "" {
			metadata["number"] = inv.Number
		}

		amount := inv.AmountDue
		if activityType == ActivityInvoicePaid {
			amount = inv.AmountPaid
		}
		if inv.Currency != "" {
			description = fmt.Sprintf("%s: %s", description, formatAmount(amount, inv.Currency))
		}

		return h.apply(ctx, n, *accountID, nil, activityType, description, metadata)
	}
}

// PaymentMethodAttached records the attachment against the customer's account.
func (h *Handlers) PaymentMethodAttached(ctx context.Context, n *entity.Notification) Result {
	var pm stripe.PaymentMethod
	if err := decodeObject(n, &pm); err != nil {
		return h.decodeFailed(n, err)
	}

	customerID := ""
	if pm.Customer != nil {
		customerID = pm.Customer.ID
	}

	accountID := accountFromMetadata(pm.Metadata)
	if accountID == nil {
		id, err := h.accountForCustomer(ctx, customerID)
		if err != nil {
			return h.resolveFailed(ctx, n, pm.ID, err)
		}
		accountID = &id
	}

	metadata := paymentMethodMetadata(&pm)
	metadata["customerId"] = customerID
	return h.apply(ctx, n, *accountID, nil, ActivityPaymentMethodAttached, "Payment method attached", metadata)
}

// PaymentMethodDetached always records with a null account: once detached the
// payment method no longer references a customer.
func (h *Handlers) PaymentMethodDetached(ctx context.Context, n *entity.Notification) Result {
	var pm stripe.PaymentMethod
	if err := decodeObject(n, &pm); err != nil {
		return h.decodeFailed(n, err)
	}

	return h.record(ctx, n, nil, ActivityPaymentMethodDetached, "Payment method detached", paymentMethodMetadata(&pm), Ok(nil, ""))
}

// CheckoutSessionCompleted takes the account from metadata or client_reference_id.
func (h *Handlers) CheckoutSessionCompleted(ctx context.Context, n *entity.Notification) Result {
	var session stripe.CheckoutSession
	if err := decodeObject(n, &session); err != nil {
		return h.decodeFailed(n, err)
	}

	accountID := accountFromMetadata(session.Metadata)
	if accountID == nil {
		if ref := strings.TrimSpace(session.ClientReferenceID); ref != "" {
			accountID = &ref
		}
	}
	if accountID == nil {
		return h.unassociated(ctx, n, session.ID, domainErrors.ErrAccountUnresolved)
	}

	metadata := map[string]interface{}{
		"sessionId": session.ID,
		"mode":      string(session.Mode),
	}
	if session.Customer != nil {
		metadata["customerId"] = session.Customer.ID
	}
	if session.Subscription != nil {
		metadata["subscriptionId"] = session.Subscription.ID
	}

	description := "Checkout completed"
	if session.Currency != "" && session.AmountTotal > 0 {
		description = fmt.Sprintf("%s: %s", description, formatAmount(session.AmountTotal, session.Currency))
	}
	return h.apply(ctx, n, *accountID, nil, ActivityCheckoutCompleted, description, metadata)
}

func (h *Handlers) SetupIntentSucceeded(ctx context.Context, n *entity.Notification) Result {
	var si stripe.SetupIntent
	if err := decodeObject(n, &si); err != nil {
		return h.decodeFailed(n, err)
	}

	accountID := accountFromMetadata(si.Metadata)
	if accountID == nil {
		return h.unassociated(ctx, n, si.ID, domainErrors.ErrAccountUnresolved)
	}

	metadata := map[string]interface{}{
		"setupIntentId": si.ID,
	}
	if si.Customer != nil {
		metadata["customerId"] = si.Customer.ID
	}
	if si.PaymentMethod != nil {
		metadata["paymentMethodId"] = si.PaymentMethod.ID
	}
	return h.apply(ctx, n, *accountID, nil, ActivitySetupIntentSucceeded, "Setup intent succeeded", metadata)
}

// apply writes the field delta (if any) and then the activity record.
// A failed account write stops before recording so a retry produces one record.
func (h *Handlers) apply(ctx context.Context, n *entity.Notification, accountID string, fields *entity.FieldSet, activityType, description string, metadata map[string]interface{}) Result {
	result := Ok(&accountID, activityType)

	if !fields.IsEmpty() {
		err := h.accounts.UpdateAccount(ctx, accountID, fields)
		switch {
		case err == nil:
		case errors.Is(err, domainErrors.ErrStaleUpdate):
			h.logger.Info("Account update superseded by a newer event",
				zap.String("event_id", n.ID),
				zap.String("event_type", n.Type),
				zap.String("account_id", accountID))
		case errors.Is(err, domainErrors.ErrAccountNotFound):
			h.logger.Warn("Webhook references an unknown account",
				zap.String("event_id", n.ID),
				zap.String("event_type", n.Type),
				zap.String("account_id", accountID))
			result = Permanent(err)
		default:
			h.logger.Error("Failed to update account",
				zap.String("event_id", n.ID),
				zap.String("event_type", n.Type),
				zap.String("account_id", accountID),
				zap.Error(err))
			return Retryable(err)
		}
	}

	return h.record(ctx, n, &accountID, activityType, description, metadata, result)
}

func (h *Handlers) record(ctx context.Context, n *entity.Notification, accountID *string, activityType, description string, metadata map[string]interface{}, result Result) Result {
	if _, err := h.recorder.Record(ctx, accountID, activityType, description, metadata); err != nil {
		h.logger.Error("Failed to record webhook activity",
			zap.String("event_id", n.ID),
			zap.String("event_type", n.Type),
			zap.Error(err))
		return Retryable(err)
	}
	return result.WithActivity(accountID, activityType)
}

func (h *Handlers) decodeFailed(n *entity.Notification, err error) Result {
	h.logger.Error("Failed to decode webhook object",
		zap.String("event_id", n.ID),
		zap.String("event_type", n.Type),
		zap.Error(err))
	return Permanent(err)
}

func decodeObject(n *entity.Notification, v interface{}) error {
	if len(n.Object) == 0 {
		return fmt.Errorf("%s: event has no data.object", n.Type)
	}
	if err := json.Unmarshal(n.Object, v); err != nil {
		return fmt.Errorf("%s: failed to decode data.object: %w", n.Type, err)
	}
	return nil
}

func subscriptionMetadata(sub *stripe.Subscription) map[string]interface{} {
	metadata := map[string]interface{}{
		"subscriptionId": sub.ID,
		"status":         string(sub.Status),
	}
	if sub.Customer != nil {
		metadata["customerId"] = sub.Customer.ID
	}
	return metadata
}

func paymentMethodMetadata(pm *stripe.PaymentMethod) map[string]interface{} {
	metadata := map[string]interface{}{
		"paymentMethodId": pm.ID,
		"type":            string(pm.Type),
	}
	if pm.Card != nil {
		metadata["brand"] = string(pm.Card.Brand)
		metadata["last4"] = pm.Card.Last4
	}
	return metadata
}

// formatAmount renders an amount in minor units, e.g. 1250 usd -> "12.50 USD", 5000 krw -> "5000 KRW".
func formatAmount(amount int64, currency stripe.Currency) string {
	code := strings.ToLower(string(currency))
	places := int32(2)
	if zeroDecimalCurrencies[code] {
		places = 0
	}
	return decimal.New(amount, -places).StringFixed(places) + " " + strings.ToUpper(code)
}
