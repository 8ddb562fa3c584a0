// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger logrus.FieldLogger) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("Running database auto-migrations")

	// Dependency order
	models := []interface{}{
		&user.User{},

		&product.Product{},
		&product.ProductImage{},
		&inventory.StockMovement{},

		&discount.DiscountCode{},

		&order.Order{},
		&order.OrderItem{},
	}

	for _, model := range models {
		m.logger.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("Database auto-migrations completed")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// Catalog
		"CREATE INDEX IF NOT EXISTS idx_products_category_paused ON products(category, paused) WHERE deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_product_images_sort_order ON product_images(product_id, sort_order)",

		// Stock
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_product_created ON stock_movements(product_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_reference ON stock_movements(reference)",

		// Orders
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
	}

	for _, stmt := range indexes {
		if err := m.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	m.logger.WithField("count", len(indexes)).Info("Database indexes ensured")
	return nil
}

// SeedInitialData seeds a small development catalog and a welcome code
func (m *Migration) SeedInitialData() error {
	if err := m.seedProducts(); err != nil {
		return err
	}
	return m.seedDiscountCodes()
}

func (m *Migration) seedProducts() error {
	var count int64
	if err := m.db.Model(&product.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		m.logger.Debug("Products already seeded")
		return nil
	}

	products := []product.Product{
		{
			Name:        "Notebook Pro 14",
			Description: "14 inch notebook with 16GB RAM and 512GB SSD.",
			Price:       decimal.NewFromInt(1250000),
			Stock:       10,
			Category:    product.CategoryLaptops,
		},
		{
			Name:        "Smartphone X2",
			Description: "6.5 inch display, 128GB storage, dual camera.",
			Price:       decimal.NewFromInt(650000),
			Stock:       25,
			Category:    product.CategorySmartphones,
		},
		{
			Name:        "Auriculares Bluetooth",
			Description: "Wireless headphones with active noise cancelling.",
			Price:       decimal.NewFromInt(85000),
			Stock:       40,
			Category:    product.CategoryAccessories,
		},
		{
			Name:        "Tablet 10",
			Description: "10 inch tablet with stylus support.",
			Price:       decimal.NewFromInt(420000),
			Stock:       8,
			Category:    product.CategoryTablets,
		},
	}

	for i := range products {
		if err := m.db.Create(&products[i]).Error; err != nil {
			m.logger.WithError(err).WithField("name", products[i].Name).Warn("Failed to seed product")
			continue
		}
		m.logger.WithField("name", products[i].Name).Info("Seeded product")
	}
	return nil
}

func (m *Migration) seedDiscountCodes() error {
	code := discount.DiscountCode{
		Code:           "BIENVENIDO10",
		DiscountValue:  decimal.NewFromInt(10),
		ExpirationDate: time.Now().UTC().AddDate(1, 0, 0),
		IsActive:       true,
		UsageLimit:     1,
	}

	var existing discount.DiscountCode
	err := m.db.Where("code = ?", code.Code).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check discount code: %w", err)
	}

	if err := m.db.Create(&code).Error; err != nil {
		return fmt.Errorf("failed to seed discount code: %w", err)
	}
	m.logger.WithField("code", code.Code).Info("Seeded discount code")
	return nil
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	tables := []interface{}{
		&order.OrderItem{},
		&order.Order{},
		&discount.DiscountCode{},
		&inventory.StockMovement{},
		&product.ProductImage{},
		&product.Product{},
		&user.User{},
	}

	for _, table := range tables {
		if err := m.db.Migrator().DropTable(table); err != nil {
			return fmt.Errorf("failed to drop table %T: %w", table, err)
		}
	}
	return nil
}
