// internal/domain/payment/mercadopago.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/your-org/storefront-backend/internal/config"
)

// MercadoPagoClient talks to the MercadoPago REST API. Every call goes
// through a circuit breaker; calls are never retried.
type MercadoPagoClient struct {
	accessToken     string
	baseURL         string
	redirectBaseURL string
	sandbox         bool
	httpClient      *http.Client
	breaker         *gobreaker.CircuitBreaker[[]byte]
	logger          logrus.FieldLogger
}

// NewMercadoPagoClient creates a client from the payment configuration
func NewMercadoPagoClient(cfg config.PaymentConfig, logger logrus.FieldLogger) *MercadoPagoClient {
	failures := cfg.BreakerFailures
	if failures < 1 {
		failures = 5
	}

	logger = logger.WithField("gateway", "mercadopago")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "mercadopago",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		// caller cancellations and client errors say nothing about gateway health
		IsSuccessful: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Payment gateway circuit breaker changed state")
		},
	})

	return &MercadoPagoClient{
		accessToken:     cfg.AccessToken,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		redirectBaseURL: cfg.RedirectBaseURL,
		sandbox:         strings.HasPrefix(cfg.AccessToken, "TEST-"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: breaker,
		logger:  logger,
	}
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

type preferenceBody struct {
	Items             []preferenceItem `json:"items"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	ExternalReference string           `json:"external_reference,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreference creates a Checkout Pro preference and resolves its redirect URL
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := preferenceBody{
		BackURLs:          req.BackURLs,
		AutoReturn:        req.AutoReturn,
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, preferenceItem{
			Title:      item.Title,
			Quantity:   item.Quantity,
			CurrencyID: item.CurrencyID,
			UnitPrice:  item.UnitPrice.Round(2).InexactFloat64(),
		})
	}

	respBody, err := c.makeAPICall(ctx, http.MethodPost, "/checkout/preferences", body)
	if err != nil {
		return nil, err
	}

	var resp preferenceResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode preference response: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("preference response has no id")
	}

	c.logger.WithFields(logrus.Fields{
		"preference_id": resp.ID,
		"reference":     req.ExternalReference,
	}).Info("Payment preference created")

	return &Preference{
		ID:          resp.ID,
		RedirectURL: c.redirectURL(resp),
	}, nil
}

func (c *MercadoPagoClient) redirectURL(resp preferenceResponse) string {
	if c.sandbox && resp.SandboxInitPoint != "" {
		return resp.SandboxInitPoint
	}
	if resp.InitPoint != "" {
		return resp.InitPoint
	}
	return c.redirectBaseURL + "?preference-id=" + url.QueryEscape(resp.ID)
}

// GetPayment fetches a payment by id
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is required")
	}

	respBody, err := c.makeAPICall(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}

	var p Payment
	if err := json.Unmarshal(respBody, &p); err != nil {
		return nil, fmt.Errorf("failed to decode payment: %w", err)
	}
	return &p, nil
}

// makeAPICall sends one JSON request through the circuit breaker
func (c *MercadoPagoClient) makeAPICall(ctx context.Context, method, endpoint string, data interface{}) ([]byte, error) {
	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, endpoint, data)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return respBody, err
}

func (c *MercadoPagoClient) do(ctx context.Context, method, endpoint string, data interface{}) ([]byte, error) {
	var reqBody []byte
	var err error

	if data != nil {
		reqBody, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request data: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API call: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"latency":  time.Since(start),
	}).Debug("Payment gateway call completed")

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: respBody.String()}
	}

	return respBody.Bytes(), nil
}
