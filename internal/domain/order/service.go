// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrReceiptUnavailable  = errors.New("receipt is only available for paid orders")
	ErrPaymentMismatch     = errors.New("payment does not belong to this store")
	ErrReceiptNotSupported = errors.New("receipt rendering is not configured")
)

// StockDecrementer removes sold units inside an order transaction
type StockDecrementer interface {
	DecrementIfAvailable(ctx context.Context, tx *gorm.DB, productID string, quantity int, reference string) error
}

// ReceiptRenderer turns a paid order into a printable document
type ReceiptRenderer interface {
	RenderReceipt(order *Order) ([]byte, error)
}

// Service handles order business logic
type Service struct {
	db       *gorm.DB
	stock    StockDecrementer
	gateway  payment.Gateway
	receipts ReceiptRenderer
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewService creates a new order service. receipts may be nil.
func NewService(db *gorm.DB, stock StockDecrementer, gateway payment.Gateway, receipts ReceiptRenderer, logger logrus.FieldLogger) *Service {
	return &Service{
		db:       db,
		stock:    stock,
		gateway:  gateway,
		receipts: receipts,
		logger:   logger,
		now:      time.Now,
	}
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page   int         `form:"page,default=1"`
	Limit  int         `form:"limit,default=20"`
	Status OrderStatus `form:"status"`
}

// OrderResponse represents order response with pagination
type OrderResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// RecordPending stores a new order before the buyer is sent to the gateway
func (s *Service) RecordPending(ctx context.Context, order *Order) error {
	if order.Reference == "" || order.SessionID == "" || len(order.Items) == 0 {
		return ErrInvalidOrder
	}
	order.Status = OrderStatusPending

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"reference":  order.Reference,
		"session_id": order.SessionID,
		"total":      order.Total.String(),
	}).Info("Pending order recorded")
	return nil
}

// AttachPreference links the created gateway preference to the order.
// A payment notification may already have moved the order on; the
// preference id is still recorded but the status is left alone.
func (s *Service) AttachPreference(ctx context.Context, reference, preferenceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockByReference(tx, reference)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{"preference_id": preferenceID}
		if order.Status == OrderStatusPending {
			fields["status"] = OrderStatusAwaitingPayment
		}
		if err := tx.Model(order).Updates(fields).Error; err != nil {
			return fmt.Errorf("failed to attach preference: %w", err)
		}
		return nil
	})
}

// MarkFailed records that the checkout attempt never reached the buyer
func (s *Service) MarkFailed(ctx context.Context, reference, reason string) error {
	return s.transition(ctx, reference, OrderStatusFailed, map[string]interface{}{
		"failure_reason": reason,
	})
}

func (s *Service) transition(ctx context.Context, reference string, to OrderStatus, fields map[string]interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockByReference(tx, reference)
		if err != nil {
			return err
		}
		if !isValidStatusTransition(order.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, to)
		}

		fields["status"] = to
		if err := tx.Model(order).Updates(fields).Error; err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return nil
	})
}

// HandlePaymentNotification fetches the payment from the gateway and applies it.
// The notification body is never trusted for the payment status.
func (s *Service) HandlePaymentNotification(ctx context.Context, paymentID string) (*Order, error) {
	p, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	if p.ExternalReference == "" {
		return nil, ErrPaymentMismatch
	}

	return s.ConfirmPayment(ctx, p.ExternalReference, paymentID, p.Status)
}

// ConfirmPayment applies a gateway payment status to an order. It is
// idempotent: paid and stock-conflicted orders are never touched again.
// An approved payment decrements stock for every item in one transaction;
// if any item is short the decrements are rolled back and the order is
// flagged for a manual refund.
func (s *Service) ConfirmPayment(ctx context.Context, reference, paymentID, status string) (*Order, error) {
	log := s.logger.WithFields(logrus.Fields{
		"reference":      reference,
		"payment_id":     paymentID,
		"payment_status": status,
	})

	var result *Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockByReference(tx, reference)
		if err != nil {
			return err
		}
		result = order

		if order.Status.IsTerminal() {
			log.WithField("status", order.Status).Info("Payment notification for settled order ignored")
			return nil
		}

		fields := map[string]interface{}{
			"payment_id":     paymentID,
			"payment_status": status,
		}

		switch status {
		case payment.StatusApproved:
			stockErr := tx.Transaction(func(stockTx *gorm.DB) error {
				for _, item := range order.Items {
					if err := s.stock.DecrementIfAvailable(ctx, stockTx, item.ProductID, item.Quantity, order.Reference); err != nil {
						return fmt.Errorf("product %s: %w", item.ProductID, err)
					}
				}
				return nil
			})
			if stockErr != nil {
				log.WithError(stockErr).Error("Paid order could not be fulfilled from stock, refund required")
				fields["status"] = OrderStatusStockConflict
				fields["failure_reason"] = stockErr.Error()
			} else {
				paidAt := s.now()
				fields["status"] = OrderStatusPaid
				fields["paid_at"] = &paidAt
				log.Info("Order paid")
			}
		case payment.StatusRejected, payment.StatusCancelled:
			fields["status"] = OrderStatusFailed
			fields["failure_reason"] = "payment " + status
			log.Info("Payment not completed")
		default:
			fields["status"] = OrderStatusAwaitingPayment
		}

		if err := tx.Model(order).Updates(fields).Error; err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByReference(ctx, result.Reference)
}

// GetByReference retrieves an order by its external reference
func (s *Service) GetByReference(ctx context.Context, reference string) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("reference = ?", reference).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

// List retrieves orders with filtering and pagination
func (s *Service) List(ctx context.Context, req *OrderListRequest) (*OrderResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&Order{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	offset := (req.Page - 1) * req.Limit
	if err := query.Preload("Items").Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &OrderResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}, nil
}

// Receipt renders the receipt of a paid order
func (s *Service) Receipt(ctx context.Context, reference string) (*Order, []byte, error) {
	if s.receipts == nil {
		return nil, nil, ErrReceiptNotSupported
	}

	order, err := s.GetByReference(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	if order.Status != OrderStatusPaid {
		return nil, nil, ErrReceiptUnavailable
	}

	doc, err := s.receipts.RenderReceipt(order)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return order, doc, nil
}

func (s *Service) lockByReference(tx *gorm.DB, reference string) (*Order, error) {
	var order Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}

	if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return &order, nil
}

func isValidStatusTransition(from, to OrderStatus) bool {
	validTransitions := map[OrderStatus][]OrderStatus{
		OrderStatusPending: {
			OrderStatusFailed,
		},
		OrderStatusAwaitingPayment: {
			OrderStatusFailed,
		},
	}

	for _, status := range validTransitions[from] {
		if status == to {
			return true
		}
	}
	return false
}
