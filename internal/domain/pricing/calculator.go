// internal/domain/pricing/calculator.go
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"golang.org/x/text/currency"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the priced view of a cart. Values are exact; rounding
// happens only in Display.
type Breakdown struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercent    decimal.Decimal `json:"discount_percent"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountedSubtotal decimal.Decimal `json:"discounted_subtotal"`
	ShippingCost       decimal.Decimal `json:"shipping_cost"`
	Total              decimal.Decimal `json:"total"`
	ItemCount          int             `json:"item_count"`
}

// Subtotal sums unit price times quantity over all lines
func Subtotal(lines []cart.Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Calculate prices a cart snapshot. The total never goes below zero.
func Calculate(snap cart.Snapshot) Breakdown {
	subtotal := Subtotal(snap.Lines)
	discount := subtotal.Mul(snap.DiscountPercent).Div(hundred)
	discounted := subtotal.Sub(discount)

	total := discounted.Add(snap.ShippingCost)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal:           subtotal,
		DiscountPercent:    snap.DiscountPercent,
		DiscountAmount:     discount,
		DiscountedSubtotal: discounted,
		ShippingCost:       snap.ShippingCost,
		Total:              total,
		ItemCount:          snap.TotalQuantity(),
	}
}

// ApplyDiscount returns price reduced by percent
func ApplyDiscount(price, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() {
		return price
	}
	return price.Sub(price.Mul(percent).Div(hundred))
}

// Display is a Breakdown rounded to two places for presentation
type Display struct {
	Currency           string `json:"currency"`
	Subtotal           string `json:"subtotal"`
	DiscountAmount     string `json:"discount_amount"`
	DiscountedSubtotal string `json:"discounted_subtotal"`
	ShippingCost       string `json:"shipping_cost"`
	Total              string `json:"total"`
	Formatted          string `json:"formatted_total"`
}

// Display rounds every amount for presentation in the given ISO currency
func (b Breakdown) Display(isoCode string) (Display, error) {
	unit, err := currency.ParseISO(isoCode)
	if err != nil {
		return Display{}, fmt.Errorf("invalid currency %q: %w", isoCode, err)
	}

	return Display{
		Currency:           unit.String(),
		Subtotal:           b.Subtotal.StringFixed(2),
		DiscountAmount:     b.DiscountAmount.StringFixed(2),
		DiscountedSubtotal: b.DiscountedSubtotal.StringFixed(2),
		ShippingCost:       b.ShippingCost.StringFixed(2),
		Total:              b.Total.StringFixed(2),
		Formatted:          fmt.Sprintf("%s %s", unit.String(), b.Total.StringFixed(2)),
	}, nil
}
