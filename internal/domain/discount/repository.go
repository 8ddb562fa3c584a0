// internal/domain/discount/repository.go
package discount

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository persists discount codes
type Repository interface {
	Get(ctx context.Context, code string) (*DiscountCode, error)
	Create(ctx context.Context, dc *DiscountCode) error
	SetActive(ctx context.Context, code string, active bool) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm backed discount repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(ctx context.Context, code string) (*DiscountCode, error) {
	var dc DiscountCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&dc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discount code: %w", err)
	}
	return &dc, nil
}

func (r *gormRepository) Create(ctx context.Context, dc *DiscountCode) error {
	err := r.db.WithContext(ctx).Create(dc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCodeExists
	}
	if err != nil {
		return fmt.Errorf("failed to create discount code: %w", err)
	}
	return nil
}

func (r *gormRepository) SetActive(ctx context.Context, code string, active bool) error {
	result := r.db.WithContext(ctx).Model(&DiscountCode{}).Where("code = ?", code).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update discount code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCodeNotFound
	}
	return nil
}
