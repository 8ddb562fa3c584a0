// internal/domain/checkout/errors.go
package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidLineIdentifier = errors.New("cart line has no product identifier")
	ErrCheckoutInProgress    = errors.New("a checkout is already in progress for this cart")
	ErrCheckoutCancelled     = errors.New("checkout was cancelled")
	ErrCheckoutTimeout       = errors.New("checkout timed out")
	ErrOrderNotRecorded      = errors.New("order could not be recorded")
)

// RejectReason explains why the reconciler refused a line
type RejectReason string

const (
	ReasonNotFound          RejectReason = "not_found"
	ReasonInsufficientStock RejectReason = "insufficient_stock"
)

// StockRejectedError reports the first cart line the stock store refused
type StockRejectedError struct {
	ProductID string
	Name      string
	Reason    RejectReason
	Requested int
	Available int
}

func (e *StockRejectedError) Error() string {
	return fmt.Sprintf("stock rejected for product %s: %s (requested %d, available %d)",
		e.ProductID, e.Reason, e.Requested, e.Available)
}

// DiscountRejectedError reports a cart discount code that no longer validates
type DiscountRejectedError struct {
	Code string
	Err  error
}

func (e *DiscountRejectedError) Error() string {
	return fmt.Sprintf("discount %s rejected: %v", e.Code, e.Err)
}

func (e *DiscountRejectedError) Unwrap() error {
	return e.Err
}

// GatewayError wraps a payment gateway failure during preference creation
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error: %v", e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Error codes returned to clients
const (
	CodeEmptyCart     = "empty_cart"
	CodeInvalidLine   = "invalid_line"
	CodeStockRejected = "stock_rejected"
	CodeDiscount      = "discount_rejected"
	CodeGatewayError  = "gateway_error"
	CodeInProgress    = "checkout_in_progress"
	CodeCancelled     = "checkout_cancelled"
	CodeTimeout       = "checkout_timeout"
	CodeUnavailable   = "checkout_unavailable"
)

// Code returns a stable machine-readable code for a checkout error
func Code(err error) string {
	var stockErr *StockRejectedError
	var discountErr *DiscountRejectedError
	var gatewayErr *GatewayError

	switch {
	case errors.Is(err, ErrEmptyCart):
		return CodeEmptyCart
	case errors.Is(err, ErrInvalidLineIdentifier):
		return CodeInvalidLine
	case errors.As(err, &stockErr):
		return CodeStockRejected
	case errors.As(err, &discountErr):
		return CodeDiscount
	case errors.As(err, &gatewayErr):
		return CodeGatewayError
	case errors.Is(err, ErrCheckoutInProgress):
		return CodeInProgress
	case errors.Is(err, ErrCheckoutCancelled):
		return CodeCancelled
	case errors.Is(err, ErrCheckoutTimeout):
		return CodeTimeout
	default:
		return CodeUnavailable
	}
}

// UserMessage returns a message safe to show to the buyer
func UserMessage(err error) string {
	var stockErr *StockRejectedError
	var discountErr *DiscountRejectedError
	var gatewayErr *GatewayError

	switch {
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrInvalidLineIdentifier):
		return "Your cart contains an invalid item. Remove it and try again."
	case errors.As(err, &stockErr):
		name := stockErr.Name
		if name == "" {
			name = stockErr.ProductID
		}
		if stockErr.Reason == ReasonNotFound {
			return fmt.Sprintf("%s is no longer available.", name)
		}
		return fmt.Sprintf("Not enough stock for %s (available: %d).", name, stockErr.Available)
	case errors.As(err, &discountErr):
		return fmt.Sprintf("The discount code %s is no longer valid. Remove it and try again.", discountErr.Code)
	case errors.As(err, &gatewayErr):
		return "We could not reach the payment provider. Your cart was kept, please try again."
	case errors.Is(err, ErrCheckoutInProgress):
		return "A payment is already in progress for this cart."
	case errors.Is(err, ErrCheckoutCancelled):
		return "The payment was cancelled. Your cart was kept."
	case errors.Is(err, ErrCheckoutTimeout):
		return "The payment took too long. Your cart was kept, please try again."
	default:
		return "We could not start the payment. Please try again in a few minutes."
	}
}
