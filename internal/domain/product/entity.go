// internal/domain/product/entity.go
package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category is one of the fixed storefront categories
type Category string

const (
	CategoryLaptops     Category = "Laptops"
	CategorySmartphones Category = "Smartphones"
	CategoryAccessories Category = "Accesorios"
	CategoryTablets     Category = "Tablets"
)

// Categories lists the categories in display order
var Categories = []Category{
	CategoryLaptops,
	CategorySmartphones,
	CategoryAccessories,
	CategoryTablets,
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product represents the product entity
type Product struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	Name        string          `gorm:"not null;size:255" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Category    Category        `gorm:"not null;size:50;index" json:"category"`
	Paused      bool            `gorm:"default:false;index" json:"paused"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Images []ProductImage `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"images,omitempty"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "products"
}

// BeforeCreate assigns an id when none was given
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// ImageURLs returns image URLs in display order
func (p *Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, img.URL)
	}
	return urls
}

// ProductImage represents a product display image
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID string    `gorm:"not null;size:64;index" json:"product_id"`
	URL       string    `gorm:"not null;size:500" json:"url"`
	SortOrder int       `gorm:"default:0" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (ProductImage) TableName() string {
	return "product_images"
}

// CategoryGroup is one category section of the public catalog
type CategoryGroup struct {
	Category Category  `json:"category"`
	Products []Product `json:"products"`
}
