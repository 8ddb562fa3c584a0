// internal/domain/product/repository.go
package product

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrImageNotFound   = errors.New("product image not found")
)

// ListFilter narrows product listings
type ListFilter struct {
	Category      Category
	IncludePaused bool
	Search        string
	Limit         int
	Offset        int
}

// Repository persists products
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	SetPaused(ctx context.Context, id string, paused bool) error
	AddImages(ctx context.Context, id string, urls []string) error
	RemoveImage(ctx context.Context, id, url string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm backed product repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, p *Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Where("id = ?", id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// Update writes the descriptive columns. Stock is never written here; it only
// moves through the inventory service's conditional updates.
func (r *gormRepository) Update(ctx context.Context, p *Product) error {
	result := r.db.WithContext(ctx).Model(p).Select("name", "description", "price", "category", "paused", "updated_at").Updates(p)
	if result.Error != nil {
		return fmt.Errorf("failed to update product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Product{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := r.db.WithContext(ctx).Model(&Product{}).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") })

	if !filter.IncludePaused {
		query = query.Where("paused = ?", false)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var products []Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *gormRepository) SetPaused(ctx context.Context, id string, paused bool) error {
	result := r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Update("paused", paused)
	if result.Error != nil {
		return fmt.Errorf("failed to update product pause state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *gormRepository) AddImages(ctx context.Context, id string, urls []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ProductImage{}).Where("product_id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count product images: %w", err)
		}

		images := make([]ProductImage, 0, len(urls))
		for i, url := range urls {
			images = append(images, ProductImage{ProductID: id, URL: url, SortOrder: int(count) + i})
		}
		if len(images) == 0 {
			return nil
		}
		if err := tx.Create(&images).Error; err != nil {
			return fmt.Errorf("failed to add product images: %w", err)
		}
		return nil
	})
}

func (r *gormRepository) RemoveImage(ctx context.Context, id, url string) error {
	result := r.db.WithContext(ctx).Where("product_id = ? AND url = ?", id, url).Delete(&ProductImage{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove product image: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrImageNotFound
	}
	return nil
}
