package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/shipping"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var cartCookie = config.CartConfig{CookieName: "session_id", CookieMaxAge: 3600}

type catalogStub map[string]cart.CatalogProduct

func (s catalogStub) Lookup(_ context.Context, id string) (cart.CatalogProduct, error) {
	p, ok := s[id]
	if !ok {
		return cart.CatalogProduct{}, cart.ErrProductNotFound
	}
	return p, nil
}

type discountStub map[string]decimal.Decimal

func (s discountStub) Validate(_ context.Context, code string) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, discount.ErrEmptyCode
	}
	if code == "OLD" {
		return decimal.Zero, discount.ErrCodeExpired
	}
	pct, ok := s[code]
	if !ok {
		return decimal.Zero, discount.ErrCodeNotFound
	}
	return pct, nil
}

func newCartService(t *testing.T, products catalogStub) *cart.Service {
	t.Helper()
	svc, err := cart.NewService(
		nil,
		products,
		discountStub{"PROMO10": decimal.NewFromInt(10)},
		shipping.NewCalculator(config.ShippingConfig{
			Rates:       map[string]decimal.Decimal{"1": decimal.NewFromInt(20)},
			DefaultRate: decimal.NewFromInt(50),
		}),
		100,
		logger.Discard(),
	)
	require.NoError(t, err)
	return svc
}

type stockStub struct {
	mu     sync.Mutex
	levels map[string]inventory.Level
}

func (s *stockStub) set(id, name string, price int64, available int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.levels == nil {
		s.levels = make(map[string]inventory.Level)
	}
	s.levels[id] = inventory.Level{ProductID: id, Exists: true, Name: name, Price: decimal.NewFromInt(price), Available: available}
}

func (s *stockStub) GetLevel(_ context.Context, id string) (inventory.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level, ok := s.levels[id]; ok {
		return level, nil
	}
	return inventory.Level{ProductID: id}, nil
}

type gatewayStub struct {
	mu    sync.Mutex
	calls []payment.PreferenceRequest
	err   error

	payments map[string]*payment.Payment
}

func (g *gatewayStub) CreatePreference(_ context.Context, req payment.PreferenceRequest) (*payment.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Preference{ID: "pref-1", RedirectURL: "https://mp.test/redirect?preference-id=pref-1"}, nil
}

func (g *gatewayStub) GetPayment(_ context.Context, id string) (*payment.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.payments[id]; ok {
		return p, nil
	}
	return nil, &payment.APIError{StatusCode: http.StatusNotFound, Body: "not found"}
}

func (g *gatewayStub) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type recorderStub struct {
	mu      sync.Mutex
	pending []*order.Order
	failed  []string
}

func (r *recorderStub) RecordPending(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, o)
	return nil
}

func (r *recorderStub) AttachPreference(context.Context, string, string) error { return nil }

func (r *recorderStub) MarkFailed(_ context.Context, reference, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, reference)
	return nil
}

// sessionRouter returns a router with the session middleware installed
func sessionRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Session(cartCookie, false))
	return r
}

func newSessionID() string {
	return uuid.NewString()
}

func doJSON(t *testing.T, h http.Handler, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: cartCookie.CookieName, Value: sessionID})
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
