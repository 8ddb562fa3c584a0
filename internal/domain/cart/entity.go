// internal/domain/cart/entity.go
package cart

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLineIdentifier = errors.New("cart line has no product identifier")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrInvalidPrice          = errors.New("unit price must not be negative")
	ErrInvalidShippingCost   = errors.New("shipping cost must not be negative")
	ErrInvalidDiscount       = errors.New("discount percent must be between 0 and 100")
	ErrLineNotFound          = errors.New("product is not in the cart")
	ErrProductNotFound       = errors.New("product not found")
	ErrProductUnavailable    = errors.New("product is not available")
)

var hundred = decimal.NewFromInt(100)

// Line is one product entry in a cart
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageRefs []string        `json:"image_refs,omitempty"`
}

// Validate checks the line invariants enforced at the store boundary
func (l Line) Validate() error {
	if l.ProductID == "" {
		return ErrInvalidLineIdentifier
	}
	if l.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if l.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Subtotal returns unit price times quantity
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) clone() Line {
	if l.ImageRefs != nil {
		l.ImageRefs = append([]string(nil), l.ImageRefs...)
	}
	return l
}

// Snapshot is an immutable copy of a cart's lines and modifiers.
// It is also the persisted form of a session cart.
type Snapshot struct {
	SessionID       string          `json:"session_id"`
	Lines           []Line          `json:"lines"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	PostalCode      string          `json:"postal_code,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountCode    string          `json:"discount_code,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsEmpty reports whether the snapshot has no lines
func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Line returns the line for productID, if present
func (s Snapshot) Line(productID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// TotalQuantity sums all line quantities
func (s Snapshot) TotalQuantity() int {
	total := 0
	for _, l := range s.Lines {
		total += l.Quantity
	}
	return total
}

func sortLines(lines []Line) {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
}
