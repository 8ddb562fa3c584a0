// internal/domain/analytics/service.go
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Statuses whose money has been collected
var collectedStatuses = []string{"paid", "stock_conflict"}

// DashboardStats summarizes the storefront for the admin panel
type DashboardStats struct {
	TotalRevenue     decimal.Decimal  `json:"total_revenue"`
	RevenueToday     decimal.Decimal  `json:"revenue_today"`
	RevenueThisMonth decimal.Decimal  `json:"revenue_this_month"`
	AvgOrderValue    decimal.Decimal  `json:"avg_order_value"`
	OrdersByStatus   map[string]int64 `json:"orders_by_status"`
	PaidOrders       int64            `json:"paid_orders"`
	StockConflicts   int64            `json:"stock_conflicts"`
	ActiveProducts   int64            `json:"active_products"`
	OutOfStock       int64            `json:"out_of_stock"`
	LowStock         int64            `json:"low_stock"`
	TopProducts      []ProductSales   `json:"top_products"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// ProductSales aggregates collected sales of one product
type ProductSales struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitsSold int64           `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// DailySales is one day of collected revenue
type DailySales struct {
	Date    time.Time       `json:"date"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Service computes read-only reports over orders and products
type Service struct {
	db                *gorm.DB
	lowStockThreshold int
	logger            logrus.FieldLogger
	now               func() time.Time
}

// NewService creates a new analytics service
func NewService(db *gorm.DB, lowStockThreshold int, logger logrus.FieldLogger) *Service {
	return &Service{
		db:                db,
		lowStockThreshold: lowStockThreshold,
		logger:            logger,
		now:               time.Now,
	}
}

// GetDashboardStats retrieves overall dashboard statistics
func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	stats := &DashboardStats{
		OrdersByStatus: make(map[string]int64),
		GeneratedAt:    now,
	}

	var revenue = []struct {
		since time.Time
		dest  *decimal.Decimal
	}{
		{time.Time{}, &stats.TotalRevenue},
		{today, &stats.RevenueToday},
		{thisMonth, &stats.RevenueThisMonth},
	}
	for _, r := range revenue {
		var row struct{ Revenue decimal.Decimal }
		err := db.Raw("SELECT COALESCE(SUM(total), 0) AS revenue FROM orders WHERE status IN ? AND created_at >= ?", collectedStatuses, r.since).
			Scan(&row).Error
		if err != nil {
			return nil, fmt.Errorf("failed to sum revenue: %w", err)
		}
		*r.dest = row.Revenue
	}

	var counts []struct {
		Status string
		Count  int64
	}
	if err := db.Raw("SELECT status, COUNT(*) AS count FROM orders GROUP BY status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	for _, c := range counts {
		stats.OrdersByStatus[c.Status] = c.Count
	}
	stats.PaidOrders = stats.OrdersByStatus["paid"]
	stats.StockConflicts = stats.OrdersByStatus["stock_conflict"]

	if collected := stats.PaidOrders + stats.StockConflicts; collected > 0 {
		stats.AvgOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(collected)).Round(2)
	}

	if err := db.Raw("SELECT COUNT(*) FROM products WHERE deleted_at IS NULL AND paused = false").Scan(&stats.ActiveProducts).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	if err := db.Raw("SELECT COUNT(*) FROM products WHERE deleted_at IS NULL AND stock = 0").Scan(&stats.OutOfStock).Error; err != nil {
		return nil, fmt.Errorf("failed to count out of stock products: %w", err)
	}
	if err := db.Raw("SELECT COUNT(*) FROM products WHERE deleted_at IS NULL AND stock > 0 AND stock <= ?", s.lowStockThreshold).Scan(&stats.LowStock).Error; err != nil {
		return nil, fmt.Errorf("failed to count low stock products: %w", err)
	}

	top, err := s.GetTopProducts(ctx, 30, 5)
	if err != nil {
		return nil, err
	}
	stats.TopProducts = top

	return stats, nil
}

// GetTopProducts ranks products by units collected over the last days
func (s *Service) GetTopProducts(ctx context.Context, days, limit int) ([]ProductSales, error) {
	if days <= 0 {
		days = 30
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var rows []ProductSales
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			oi.product_id AS product_id,
			MAX(oi.title) AS title,
			COALESCE(SUM(oi.quantity), 0) AS units_sold,
			COALESCE(SUM(oi.unit_price * oi.quantity), 0) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status IN ? AND o.created_at >= ?
		GROUP BY oi.product_id
		ORDER BY units_sold DESC, revenue DESC
		LIMIT ?
	`, collectedStatuses, s.now().AddDate(0, 0, -days), limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	return rows, nil
}

// GetSalesAnalytics returns collected revenue per day, oldest first
func (s *Service) GetSalesAnalytics(ctx context.Context, days int) ([]DailySales, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	var rows []DailySales
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			DATE_TRUNC('day', created_at) AS date,
			COUNT(*) AS orders,
			COALESCE(SUM(total), 0) AS revenue
		FROM orders
		WHERE status IN ? AND created_at >= ?
		GROUP BY DATE_TRUNC('day', created_at)
		ORDER BY date
	`, collectedStatuses, s.now().AddDate(0, 0, -days)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	return rows, nil
}
