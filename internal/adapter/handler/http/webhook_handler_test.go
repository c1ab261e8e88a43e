package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	stripeProvider "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/usecase/billing"
	"go.uber.org/zap"
)

const (
	testSecret  = "whsec_handler_secret"
	testPayload = `{"id":"evt_1","object":"event","type":"customer.subscription.updated","created":1700000000,"livemode":false,"data":{"object":{"id":"sub_1","object":"subscription","status":"active","metadata":{"account_id":"acct_1"}}}}`
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, n *entity.Notification) billing.Result {
	args := m.Called(ctx, n)
	return args.Get(0).(billing.Result)
}

func signPayload(secret, payload string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

func postWebhook(h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	_ = h.HandleWebhook(e.NewContext(req, rec))
	return rec
}

func TestWebhookHandler_AcknowledgesVerifiedEvents(t *testing.T) {
	accountID := "acct_1"

	tests := []struct {
		name   string
		result billing.Result
	}{
		{name: "handled", result: billing.Ok(&accountID, "billing.subscription.updated")},
		{name: "ignored type", result: billing.Ignored()},
		{name: "retryable failure", result: billing.Retryable(errors.New("db down"))},
		{name: "permanent failure", result: billing.Permanent(errors.New("account not found"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := new(MockProcessor)
			processor.On("Process", mock.Anything, mock.MatchedBy(func(n *entity.Notification) bool {
				return n.ID == "evt_1" && n.Type == "customer.subscription.updated" && string(n.Raw) == testPayload
			})).Return(tt.result).Once()

			h := NewWebhookHandler(stripeProvider.NewVerifier(testSecret, 0, zap.NewNop()), processor, zap.NewNop())
			rec := postWebhook(h, testPayload, signPayload(testSecret, testPayload))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"received":true}`, rec.Body.String())
			processor.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_RejectsUnauthenticatedRequests(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		body      string
		signature string
		wantError string
	}{
		{
			name:      "missing signature",
			secret:    testSecret,
			body:      testPayload,
			wantError: "missing Stripe signature",
		},
		{
			name:      "tampered body",
			secret:    testSecret,
			body:      strings.Replace(testPayload, "active", "canceled", 1),
			signature: signPayload(testSecret, testPayload),
			wantError: "invalid Stripe signature",
		},
		{
			name:      "signed with another secret",
			secret:    testSecret,
			body:      testPayload,
			signature: signPayload("whsec_other", testPayload),
			wantError: "invalid Stripe signature",
		},
		{
			name:      "malformed header",
			secret:    testSecret,
			body:      testPayload,
			signature: "not-a-signature",
			wantError: "invalid Stripe signature",
		},
		{
			name:      "secret not configured",
			secret:    "",
			body:      testPayload,
			signature: signPayload(testSecret, testPayload),
			wantError: "webhook secret not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := new(MockProcessor)
			h := NewWebhookHandler(stripeProvider.NewVerifier(tt.secret, 0, zap.NewNop()), processor, zap.NewNop())

			rec := postWebhook(h, tt.body, tt.signature)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.wantError+`"}`, rec.Body.String())
			processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
		})
	}
}
