// internal/domain/discount/entity.go
package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountCode is a percent-off code entered at the cart
type DiscountCode struct {
	Code           string          `gorm:"primaryKey;size:50" json:"code"`
	DiscountValue  decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"discount_value"`
	ExpirationDate time.Time       `gorm:"not null;index" json:"expiration_date"`
	IsActive       bool            `gorm:"default:true" json:"is_active"`
	UsageLimit     int             `gorm:"default:1" json:"usage_limit"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (DiscountCode) TableName() string {
	return "discount_codes"
}

// GenerateRequest represents an admin request to create a code
type GenerateRequest struct {
	Code           string          `json:"code"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	ExpirationDate time.Time       `json:"expiration_date" binding:"required"`
}
