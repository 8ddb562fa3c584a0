// internal/domain/discount/service.go
package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyCode     = errors.New("discount code is empty")
	ErrCodeNotFound  = errors.New("discount code does not exist")
	ErrCodeExpired   = errors.New("discount code has expired")
	ErrCodeInactive  = errors.New("discount code is not active")
	ErrCodeExists    = errors.New("discount code already exists")
	ErrInvalidValue  = errors.New("discount value must be greater than 0 and at most 100")
	ErrInvalidExpiry = errors.New("expiration date must be in the future")
)

var hundred = decimal.NewFromInt(100)

// Service validates and generates discount codes
type Service struct {
	repo   Repository
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new discount service
func NewService(repo Repository, logger logrus.FieldLogger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate resolves a code to its discount percent. It never mutates the code.
func (s *Service) Validate(ctx context.Context, code string) (decimal.Decimal, error) {
	code = normalize(code)
	if code == "" {
		return decimal.Zero, ErrEmptyCode
	}

	dc, err := s.repo.Get(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}

	if dc.ExpirationDate.Before(s.now()) {
		return decimal.Zero, ErrCodeExpired
	}
	if !dc.IsActive {
		return decimal.Zero, ErrCodeInactive
	}

	return dc.DiscountValue, nil
}

// Generate creates a new single-use code. A code is generated when none is given.
func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (*DiscountCode, error) {
	if !req.DiscountValue.IsPositive() || req.DiscountValue.GreaterThan(hundred) {
		return nil, ErrInvalidValue
	}
	if !req.ExpirationDate.After(s.now()) {
		return nil, ErrInvalidExpiry
	}

	code := normalize(req.Code)
	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	}

	dc := &DiscountCode{
		Code:           code,
		DiscountValue:  req.DiscountValue,
		ExpirationDate: req.ExpirationDate.UTC(),
		IsActive:       true,
		UsageLimit:     1,
	}
	if err := s.repo.Create(ctx, dc); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"code":  dc.Code,
		"value": dc.DiscountValue.String(),
	}).Info("Discount code generated")
	return dc, nil
}

// Deactivate disables a code
func (s *Service) Deactivate(ctx context.Context, code string) error {
	code = normalize(code)
	if code == "" {
		return ErrEmptyCode
	}
	if err := s.repo.SetActive(ctx, code, false); err != nil {
		return fmt.Errorf("failed to deactivate %s: %w", code, err)
	}
	return nil
}
