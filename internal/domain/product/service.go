// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidProduct = errors.New("invalid product")
	ErrTooManyImages  = errors.New("too many product images")
)

// Service handles product business logic
type Service struct {
	repo      Repository
	maxImages int
	logger    logrus.FieldLogger
}

// NewService creates a new product service
func NewService(repo Repository, maxImages int, logger logrus.FieldLogger) *Service {
	return &Service{
		repo:      repo,
		maxImages: maxImages,
		logger:    logger,
	}
}

// ProductCreateRequest represents product creation data
type ProductCreateRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    Category        `json:"category" binding:"required"`
	Paused      bool            `json:"paused"`
	ImageURLs   []string        `json:"image_urls"`
}

// ProductUpdateRequest represents product update data. Stock is adjusted
// through the inventory endpoints only.
type ProductUpdateRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *Category        `json:"category"`
	Paused      *bool            `json:"paused"`
}

func validate(p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	if !p.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	}
	return nil
}

// CreateProduct validates and stores a new product
func (s *Service) CreateProduct(ctx context.Context, req *ProductCreateRequest) (*Product, error) {
	if len(req.ImageURLs) > s.maxImages {
		return nil, fmt.Errorf("%w: at most %d", ErrTooManyImages, s.maxImages)
	}

	p := &Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Paused:      req.Paused,
	}
	for i, url := range req.ImageURLs {
		p.Images = append(p.Images, ProductImage{URL: url, SortOrder: i})
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.WithField("product_id", p.ID).Info("Product created")
	return p, nil
}

// UpdateProduct applies the non-nil fields of req
func (s *Service) UpdateProduct(ctx context.Context, id string, req *ProductUpdateRequest) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Paused != nil {
		p.Paused = *req.Paused
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes a product
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("Product deleted")
	return nil
}

// GetProduct returns any product, paused or not
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActiveProduct returns a product visible to shoppers
func (s *Service) GetActiveProduct(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// ListProducts lists products for the admin dashboard
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	return s.repo.List(ctx, filter)
}

// TogglePause flips the paused flag
func (s *Service) TogglePause(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Paused = !p.Paused
	if err := s.repo.SetPaused(ctx, id, p.Paused); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"product_id": id, "paused": p.Paused}).Info("Product pause toggled")
	return p, nil
}

// AddImages appends image URLs, keeping the total within the limit
func (s *Service) AddImages(ctx context.Context, id string, urls []string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(p.Images)+len(urls) > s.maxImages {
		return nil, fmt.Errorf("%w: at most %d", ErrTooManyImages, s.maxImages)
	}

	if err := s.repo.AddImages(ctx, id, urls); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// RemoveImage detaches one image URL from a product
func (s *Service) RemoveImage(ctx context.Context, id, url string) (*Product, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrImageNotFound
	}
	if err := s.repo.RemoveImage(ctx, id, url); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"product_id": id, "url": url}).Info("Product image removed")
	return s.repo.GetByID(ctx, id)
}

// Catalog returns active products grouped by category. Empty categories are omitted.
func (s *Service) Catalog(ctx context.Context) ([]CategoryGroup, error) {
	products, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}

	byCategory := make(map[Category][]Product)
	for _, p := range products {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	groups := make([]CategoryGroup, 0, len(Categories))
	for _, c := range Categories {
		if len(byCategory[c]) == 0 {
			continue
		}
		groups = append(groups, CategoryGroup{Category: c, Products: byCategory[c]})
	}
	return groups, nil
}
