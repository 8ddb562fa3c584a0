package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
)

type notifierStub struct {
	calls []string
	err   error
}

func (n *notifierStub) HandlePaymentNotification(_ context.Context, paymentID string) (*order.Order, error) {
	n.calls = append(n.calls, paymentID)
	if n.err != nil {
		return nil, n.err
	}
	return &order.Order{Reference: "ref-1", Status: order.OrderStatusPaid}, nil
}

func newPaymentRouter(notifier PaymentNotifier, secret string) *gin.Engine {
	h := NewPaymentHandler(notifier, secret, logger.Discard())

	r := gin.New()
	r.POST("/webhooks/mercadopago", h.WebhookHandler)
	r.GET("/payments/success", h.Landing("success"))
	r.GET("/payments/failure", h.Landing("failure"))
	return r
}

func postWebhook(r http.Handler, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_PaymentFromBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"numeric id", `{"type":"payment","action":"payment.updated","data":{"id":123456}}`},
		{"string id", `{"type":"payment","action":"payment.created","data":{"id":"123456"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &notifierStub{}
			r := newPaymentRouter(notifier, "")

			w := postWebhook(r, "/webhooks/mercadopago", tt.body, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, []string{"123456"}, notifier.calls)
		})
	}
}

func TestWebhookHandler_QueryParameters(t *testing.T) {
	notifier := &notifierStub{}
	r := newPaymentRouter(notifier, "")

	w := postWebhook(r, "/webhooks/mercadopago?type=payment&data.id=777", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"777"}, notifier.calls)
}

func TestWebhookHandler_IgnoresOtherTopics(t *testing.T) {
	notifier := &notifierStub{}
	r := newPaymentRouter(notifier, "")

	w := postWebhook(r, "/webhooks/mercadopago", `{"type":"merchant_order","data":{"id":"1"}}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	assert.Empty(t, notifier.calls)
}

func TestWebhookHandler_Signature(t *testing.T) {
	const secret = "webhook-secret"
	notifier := &notifierStub{}
	r := newPaymentRouter(notifier, secret)
	body := `{"type":"payment","data":{"id":"42"}}`

	w := postWebhook(r, "/webhooks/mercadopago?type=payment&data.id=42", body, map[string]string{
		"x-signature":  "ts=1700000000,v1=deadbeef",
		"x-request-id": "req-1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, notifier.calls)

	signature := payment.SignManifest(secret, "req-1", "42", "1700000000")
	w = postWebhook(r, "/webhooks/mercadopago?type=payment&data.id=42", body, map[string]string{
		"x-signature":  "ts=1700000000,v1=" + signature,
		"x-request-id": "req-1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"42"}, notifier.calls)
}

func TestWebhookHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"invalid json", `{"type":`, nil, http.StatusBadRequest},
		{"missing id", `{"type":"payment","data":{}}`, nil, http.StatusBadRequest},
		{"foreign payment", `{"type":"payment","data":{"id":"1"}}`, order.ErrPaymentMismatch, http.StatusOK},
		{"unknown order", `{"type":"payment","data":{"id":"1"}}`, order.ErrOrderNotFound, http.StatusOK},
		{"gateway down", `{"type":"payment","data":{"id":"1"}}`, &payment.APIError{StatusCode: 503}, http.StatusInternalServerError},
		{"unexpected", `{"type":"payment","data":{"id":"1"}}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newPaymentRouter(&notifierStub{err: tt.err}, "")

			w := postWebhook(r, "/webhooks/mercadopago", tt.body, nil)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestLanding(t *testing.T) {
	notifier := &notifierStub{}
	r := newPaymentRouter(notifier, "")

	req := httptest.NewRequest(http.MethodGet, "/payments/success?payment_id=99&status=approved&external_reference=ref-1&preference_id=pref-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode[map[string]string](t, w)
	assert.Equal(t, "Payment approved", env.Message)
	assert.Equal(t, "ref-1", env.Data["reference"])
	assert.Equal(t, "approved", env.Data["payment_state"])
	assert.Equal(t, string(order.OrderStatusPaid), env.Data["order_status"])
	assert.Equal(t, []string{"99"}, notifier.calls)

	req = httptest.NewRequest(http.MethodGet, "/payments/failure?collection_id=100&collection_status=rejected", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env = decode[map[string]string](t, w)
	assert.Equal(t, "Payment failed", env.Message)
	assert.Equal(t, "rejected", env.Data["payment_state"])
	assert.Len(t, notifier.calls, 1)
}
