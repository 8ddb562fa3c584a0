package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *MercadoPagoClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewMercadoPagoClient(config.PaymentConfig{
		AccessToken:     token,
		BaseURL:         srv.URL,
		RedirectBaseURL: "https://www.mercadopago.com.ar/checkout/v1/redirect",
		Timeout:         2 * time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	}, logger.Discard())
}

func sampleRequest() PreferenceRequest {
	return PreferenceRequest{
		Items: []Item{{Title: "A", Quantity: 1, CurrencyID: "ARS", UnitPrice: decimal.NewFromInt(1000)}},
		BackURLs: BackURLs{
			Success: "http://localhost:8080/api/v1/payments/success",
			Failure: "http://localhost:8080/api/v1/payments/failure",
			Pending: "http://localhost:8080/api/v1/payments/pending",
		},
		AutoReturn:        "approved",
		ExternalReference: "ref-1",
	}
}

func TestCreatePreference_SendsItemsAndResolvesRedirect(t *testing.T) {
	var got preferenceBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer APP_USR-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pref-123","init_point":"https://mp.example/init?pref=pref-123","sandbox_init_point":"https://sandbox.mp.example/init"}`))
	}, "APP_USR-token")

	pref, err := client.CreatePreference(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "pref-123", pref.ID)
	assert.Equal(t, "https://mp.example/init?pref=pref-123", pref.RedirectURL)
	require.Len(t, got.Items, 1)
	assert.Equal(t, preferenceItem{Title: "A", Quantity: 1, CurrencyID: "ARS", UnitPrice: 1000}, got.Items[0])
	assert.Equal(t, "approved", got.AutoReturn)
	assert.Equal(t, "ref-1", got.ExternalReference)
	assert.Equal(t, "http://localhost:8080/api/v1/payments/failure", got.BackURLs.Failure)
}

func TestCreatePreference_SandboxAndFallbackRedirect(t *testing.T) {
	sandbox := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p1","init_point":"https://mp.example/init","sandbox_init_point":"https://sandbox.mp.example/init"}`))
	}, "TEST-token")
	pref, err := sandbox.CreatePreference(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.mp.example/init", pref.RedirectURL)

	bare := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p2"}`))
	}, "APP_USR-token")
	pref, err = bare.CreatePreference(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://www.mercadopago.com.ar/checkout/v1/redirect?preference-id=p2", pref.RedirectURL)
}

func TestCreatePreference_InvalidRequestNeverCallsGateway(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, "APP_USR-token")

	req := sampleRequest()
	req.Items[0].Quantity = 0
	_, err := client.CreatePreference(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidPreference)

	_, err = client.CreatePreference(context.Background(), PreferenceRequest{})
	assert.ErrorIs(t, err, ErrInvalidPreference)
	assert.Zero(t, calls.Load())
}

func TestCreatePreference_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid items"}`))
	}, "APP_USR-token")

	_, err := client.CreatePreference(context.Background(), sampleRequest())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid items")
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, "APP_USR-token")

	for i := 0; i < 3; i++ {
		_, err := client.CreatePreference(context.Background(), sampleRequest())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}

	_, err := client.CreatePreference(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, "APP_USR-token")

	for i := 0; i < 5; i++ {
		_, err := client.CreatePreference(context.Background(), sampleRequest())
		assert.NotErrorIs(t, err, ErrGatewayUnavailable)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestGetPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/987", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":987,"status":"approved","status_detail":"accredited","external_reference":"ref-1","transaction_amount":1000.5,"currency_id":"ARS"}`))
	}, "APP_USR-token")

	p, err := client.GetPayment(context.Background(), "987")
	require.NoError(t, err)

	assert.Equal(t, int64(987), p.ID)
	assert.Equal(t, StatusApproved, p.Status)
	assert.Equal(t, "ref-1", p.ExternalReference)
	assert.True(t, p.TransactionAmount.Equal(decimal.RequireFromString("1000.5")))
}

func TestCreatePreference_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, "APP_USR-token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreatePreference(ctx, sampleRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
