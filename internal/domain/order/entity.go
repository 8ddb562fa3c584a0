// internal/domain/order/entity.go
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"          // Recorded, preference not yet created
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment" // Buyer redirected to the gateway
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusFailed          OrderStatus = "failed"
	OrderStatusStockConflict   OrderStatus = "stock_conflict" // Paid but stock ran out, needs a refund
)

// IsTerminal reports whether no further payment updates change the order
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusStockConflict
}

// Order is one checkout attempt that reached the payment gateway
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Reference       string          `gorm:"uniqueIndex;not null;size:64" json:"reference"`
	SessionID       string          `gorm:"not null;size:64;index" json:"-"`
	Status          OrderStatus     `gorm:"not null;size:30;default:'pending';index" json:"status"`
	PreferenceID    string          `gorm:"size:100" json:"preference_id,omitempty"`
	PaymentID       string          `gorm:"size:50;index" json:"payment_id,omitempty"`
	PaymentStatus   string          `gorm:"size:30" json:"payment_status,omitempty"`
	FailureReason   string          `gorm:"type:text" json:"failure_reason,omitempty"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(5,2);default:0" json:"discount_percent"`
	DiscountCode    string          `gorm:"size:50" json:"discount_code,omitempty"`
	ShippingCost    decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"shipping_cost"`
	PostalCode      string          `gorm:"size:10" json:"postal_code,omitempty"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// TableName overrides the table name
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one purchased line, priced from the authoritative catalog
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	OrderID   uint            `gorm:"not null;index" json:"-"`
	ProductID string          `gorm:"not null;size:64;index" json:"product_id"`
	Title     string          `gorm:"not null;size:255" json:"title"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
}

// TableName overrides the table name
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal returns unit price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
