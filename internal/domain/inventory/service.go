// internal/domain/inventory/service.go
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Service handles stock reads and writes against the products table
type Service struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewService creates a new inventory service
func NewService(db *gorm.DB, logger logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// GetLevel reads the authoritative stock of a product. An unknown
// product is reported through Level.Exists, not an error.
func (s *Service) GetLevel(ctx context.Context, productID string) (Level, error) {
	var p product.Product
	err := s.db.WithContext(ctx).
		Select("id", "name", "price", "stock", "paused").
		Where("id = ?", productID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Level{ProductID: productID}, nil
	}
	if err != nil {
		return Level{}, fmt.Errorf("failed to read stock level: %w", err)
	}

	return Level{
		ProductID: p.ID,
		Exists:    true,
		Paused:    p.Paused,
		Name:      p.Name,
		Price:     p.Price,
		Available: p.Stock,
	}, nil
}

// DecrementIfAvailable removes quantity units in a single conditional
// update, so concurrent buyers can never take stock below zero. It runs
// inside tx when given, otherwise in its own transaction.
func (s *Service) DecrementIfAvailable(ctx context.Context, tx *gorm.DB, productID string, quantity int, reference string) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if tx == nil {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.decrement(ctx, tx, productID, quantity, reference)
		})
	}
	return s.decrement(ctx, tx, productID, quantity, reference)
}

func (s *Service) decrement(ctx context.Context, tx *gorm.DB, productID string, quantity int, reference string) error {
	tx = tx.WithContext(ctx)

	result := tx.Model(&product.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement stock: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&product.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}
		if count == 0 {
			return ErrProductNotFound
		}
		return ErrInsufficientStock
	}

	var remaining int
	if err := tx.Model(&product.Product{}).Select("stock").Where("id = ?", productID).Scan(&remaining).Error; err != nil {
		return fmt.Errorf("failed to read remaining stock: %w", err)
	}

	movement := &StockMovement{
		ProductID:    productID,
		MovementType: MovementTypeOutbound,
		Reason:       ReasonSale,
		Quantity:     quantity,
		NewQuantity:  remaining,
		Reference:    reference,
	}
	if err := tx.Create(movement).Error; err != nil {
		return fmt.Errorf("failed to record movement: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"quantity":   quantity,
		"remaining":  remaining,
		"reference":  reference,
	}).Info("Stock decremented")
	return nil
}

// Adjust changes stock by delta for restocks and corrections. Stock never goes below zero.
func (s *Service) Adjust(ctx context.Context, productID string, req *AdjustRequest, userID *uint) (*StockMovement, error) {
	if req.Delta == 0 {
		return nil, ErrInvalidQuantity
	}

	movementType := MovementTypeInbound
	quantity := req.Delta
	if req.Delta < 0 {
		movementType = MovementTypeOutbound
		quantity = -req.Delta
	}
	reason := req.Reason
	if reason == "" {
		reason = ReasonAdjustment
	}

	var movement *StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&product.Product{}).
			Where("id = ? AND stock + ? >= 0", productID, req.Delta).
			UpdateColumn("stock", gorm.Expr("stock + ?", req.Delta))
		if result.Error != nil {
			return fmt.Errorf("failed to adjust stock: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&product.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check product: %w", err)
			}
			if count == 0 {
				return ErrProductNotFound
			}
			return ErrInsufficientStock
		}

		var remaining int
		if err := tx.Model(&product.Product{}).Select("stock").Where("id = ?", productID).Scan(&remaining).Error; err != nil {
			return fmt.Errorf("failed to read remaining stock: %w", err)
		}

		movement = &StockMovement{
			ProductID:    productID,
			MovementType: movementType,
			Reason:       reason,
			Quantity:     quantity,
			NewQuantity:  remaining,
			Notes:        req.Notes,
			CreatedBy:    userID,
		}
		if err := tx.Create(movement).Error; err != nil {
			return fmt.Errorf("failed to record movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return movement, nil
}

// Movements lists the latest movements of a product
func (s *Service) Movements(ctx context.Context, productID string, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var movements []StockMovement
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}
