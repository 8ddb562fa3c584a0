// internal/domain/checkout/reconciler.go
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
)

// StockReader reads authoritative product stock
type StockReader interface {
	GetLevel(ctx context.Context, productID string) (inventory.Level, error)
}

// PricedLine is a cart line confirmed against the stock store
type PricedLine struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Reconciler confirms every cart line against the stock store. It only
// reads; stock is taken when the payment is confirmed.
type Reconciler struct {
	stock     StockReader
	discounts cart.DiscountValidator
}

// NewReconciler creates a reconciler
func NewReconciler(stock StockReader) *Reconciler {
	return &Reconciler{stock: stock}
}

// WithDiscounts makes CheckDiscount re-validate codes against v
func (r *Reconciler) WithDiscounts(v cart.DiscountValidator) *Reconciler {
	r.discounts = v
	return r
}

// CheckDiscount re-validates the discount code carried by the cart and
// returns the percent to charge. Carts without a code, or reconcilers
// without a validator, keep the cart's percent.
func (r *Reconciler) CheckDiscount(ctx context.Context, snap cart.Snapshot) (decimal.Decimal, error) {
	if r.discounts == nil || snap.DiscountCode == "" {
		return snap.DiscountPercent, nil
	}

	percent, err := r.discounts.Validate(ctx, snap.DiscountCode)
	switch {
	case errors.Is(err, discount.ErrEmptyCode),
		errors.Is(err, discount.ErrCodeNotFound),
		errors.Is(err, discount.ErrCodeExpired),
		errors.Is(err, discount.ErrCodeInactive):
		return decimal.Zero, &DiscountRejectedError{Code: snap.DiscountCode, Err: err}
	case err != nil:
		return decimal.Zero, fmt.Errorf("failed to validate discount %s: %w", snap.DiscountCode, err)
	}
	return percent, nil
}

// Check stops at the first missing, paused or under-stocked line and
// returns a *StockRejectedError for it. On success the lines carry the
// store's current name and price.
func (r *Reconciler) Check(ctx context.Context, lines []cart.Line) ([]PricedLine, error) {
	priced := make([]PricedLine, 0, len(lines))

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if line.ProductID == "" {
			return nil, ErrInvalidLineIdentifier
		}

		level, err := r.stock.GetLevel(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to read stock for %s: %w", line.ProductID, err)
		}

		if !level.Exists || level.Paused {
			return nil, &StockRejectedError{
				ProductID: line.ProductID,
				Name:      line.Name,
				Reason:    ReasonNotFound,
				Requested: line.Quantity,
			}
		}
		if level.Available < line.Quantity {
			return nil, &StockRejectedError{
				ProductID: line.ProductID,
				Name:      level.Name,
				Reason:    ReasonInsufficientStock,
				Requested: line.Quantity,
				Available: level.Available,
			}
		}

		name := level.Name
		if name == "" {
			name = line.Name
		}
		priced = append(priced, PricedLine{
			ProductID: line.ProductID,
			Name:      name,
			UnitPrice: level.Price,
			Quantity:  line.Quantity,
		})
	}

	return priced, nil
}
