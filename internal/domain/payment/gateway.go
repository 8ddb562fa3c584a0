// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway is unavailable")
	ErrInvalidPreference  = errors.New("invalid preference request")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
)

// Payment statuses reported by the gateway
const (
	StatusApproved    = "approved"
	StatusPending     = "pending"
	StatusInProcess   = "in_process"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
	StatusAuthorized  = "authorized"
	StatusInMediation = "in_mediation"
)

// Item is one purchasable line of a preference
type Item struct {
	Title      string
	Quantity   int
	CurrencyID string
	UnitPrice  decimal.Decimal
}

// BackURLs are the landing pages the gateway returns the buyer to
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest describes a hosted checkout to create
type PreferenceRequest struct {
	Items             []Item
	BackURLs          BackURLs
	AutoReturn        string
	ExternalReference string
	NotificationURL   string
}

// Total is the amount the buyer is charged for the request
func (r PreferenceRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Validate checks the request before it is sent
func (r PreferenceRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidPreference)
	}
	for _, item := range r.Items {
		if item.Title == "" {
			return fmt.Errorf("%w: item without title", ErrInvalidPreference)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity must be positive for %s", ErrInvalidPreference, item.Title)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: negative price for %s", ErrInvalidPreference, item.Title)
		}
		if item.CurrencyID == "" {
			return fmt.Errorf("%w: missing currency for %s", ErrInvalidPreference, item.Title)
		}
	}
	return nil
}

// Preference is a created hosted checkout
type Preference struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

// Payment is the gateway's view of a payment attempt
type Payment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
}

// Gateway is the hosted payment provider
type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// APIError is a non-2xx response from the gateway
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API call failed with status %d: %s", e.StatusCode, e.Body)
}
