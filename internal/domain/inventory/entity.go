// internal/domain/inventory/entity.go
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType represents the type of inventory movement
type MovementType string

const (
	MovementTypeInbound  MovementType = "inbound"  // Restock, adjustment increase
	MovementTypeOutbound MovementType = "outbound" // Sale, adjustment decrease
)

// MovementReason represents the reason for inventory movement
type MovementReason string

const (
	ReasonSale       MovementReason = "sale"
	ReasonPurchase   MovementReason = "purchase"
	ReasonAdjustment MovementReason = "adjustment"
	ReasonDamage     MovementReason = "damage"
)

// StockMovement records every change to a product's stock
type StockMovement struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ProductID    string         `gorm:"not null;size:64;index" json:"product_id"`
	MovementType MovementType   `gorm:"not null;size:20" json:"movement_type"`
	Reason       MovementReason `gorm:"not null;size:30" json:"reason"`
	Quantity     int            `gorm:"not null" json:"quantity"`
	NewQuantity  int            `gorm:"not null" json:"new_quantity"`
	Reference    string         `gorm:"size:64;index" json:"reference,omitempty"`
	Notes        string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy    *uint          `json:"created_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName overrides the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// Level is the authoritative stock view of one product
type Level struct {
	ProductID string          `json:"product_id"`
	Exists    bool            `json:"exists"`
	Paused    bool            `json:"paused"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available int             `json:"available"`
}

// AdjustRequest represents an admin stock adjustment
type AdjustRequest struct {
	Delta  int            `json:"delta" binding:"required"`
	Reason MovementReason `json:"reason"`
	Notes  string         `json:"notes"`
}
