package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/analytics"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type PostgresSuite struct {
	suite.Suite

	container *tcpostgres.PostgresContainer
	db        *gorm.DB

	products  product.Repository
	inventory *inventory.Service
	discounts *discount.Service
	orders    *order.Service
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration tests in short mode")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront_test"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	log := logger.Discard()
	s.db, err = postgres.Open(dsn, config.DatabaseConfig{MaxOpenConns: 20, MaxIdleConns: 5}, log, false)
	s.Require().NoError(err)

	migration := postgres.NewMigration(s.db, log)
	s.Require().NoError(migration.RunAutoMigrations())
	s.Require().NoError(migration.CreateIndexes())

	s.products = product.NewRepository(s.db)
	s.inventory = inventory.NewService(s.db, log)
	s.discounts = discount.NewService(discount.NewRepository(s.db), log)
	s.orders = order.NewService(s.db, s.inventory, nil, nil, log)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if s.container != nil {
		if err := s.container.Terminate(context.Background()); err != nil {
			s.T().Logf("failed to terminate container: %s", err)
		}
	}
}

func (s *PostgresSuite) SetupTest() {
	s.Require().NoError(s.db.Exec("TRUNCATE order_items, orders, stock_movements, product_images, products, discount_codes RESTART IDENTITY CASCADE").Error)
}

func (s *PostgresSuite) createProduct(stock int, price int64) *product.Product {
	p := &product.Product{
		Name:     gofakeit.ProductName(),
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		Category: product.CategoryAccessories,
	}
	s.Require().NoError(s.products.Create(context.Background(), p))
	return p
}

func (s *PostgresSuite) stockOf(id string) int {
	level, err := s.inventory.GetLevel(context.Background(), id)
	s.Require().NoError(err)
	return level.Available
}

func (s *PostgresSuite) recordOrder(items ...order.OrderItem) *order.Order {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	o := &order.Order{
		Reference: gofakeit.UUID(),
		SessionID: gofakeit.UUID(),
		Currency:  "ARS",
		Subtotal:  total,
		Total:     total,
		Items:     items,
	}
	s.Require().NoError(s.orders.RecordPending(context.Background(), o))
	return o
}

func (s *PostgresSuite) TestProductRepository() {
	ctx := context.Background()
	p := s.createProduct(3, 1500)
	s.Require().NoError(s.products.AddImages(ctx, p.ID, []string{"/uploads/products/a.png", "/uploads/products/b.png"}))

	got, err := s.products.GetByID(ctx, p.ID)
	s.Require().NoError(err)
	s.True(got.Price.Equal(decimal.NewFromInt(1500)))
	s.Equal([]string{"/uploads/products/a.png", "/uploads/products/b.png"}, got.ImageURLs())

	s.Require().NoError(s.products.SetPaused(ctx, p.ID, true))
	active, err := s.products.List(ctx, product.ListFilter{})
	s.Require().NoError(err)
	s.Empty(active)

	all, err := s.products.List(ctx, product.ListFilter{IncludePaused: true})
	s.Require().NoError(err)
	s.Len(all, 1)

	s.Require().NoError(s.products.Delete(ctx, p.ID))
	_, err = s.products.GetByID(ctx, p.ID)
	s.ErrorIs(err, product.ErrProductNotFound)
}

func (s *PostgresSuite) TestGetLevel_UnknownProduct() {
	level, err := s.inventory.GetLevel(context.Background(), "missing")
	s.Require().NoError(err)
	s.False(level.Exists)
}

func (s *PostgresSuite) TestDecrementIfAvailable_NeverOversells() {
	p := s.createProduct(5, 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.inventory.DecrementIfAvailable(context.Background(), nil, p.ID, 1, fmt.Sprintf("ref-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case err == inventory.ErrInsufficientStock:
				rejected++
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(5, succeeded)
	s.Equal(7, rejected)
	s.Equal(0, s.stockOf(p.ID))

	movements, err := s.inventory.Movements(context.Background(), p.ID, 50)
	s.Require().NoError(err)
	s.Len(movements, 5)
	s.Equal(0, movements[0].NewQuantity)
}

func (s *PostgresSuite) TestDecrementIfAvailable_UnknownProduct() {
	err := s.inventory.DecrementIfAvailable(context.Background(), nil, "missing", 1, "ref")
	s.ErrorIs(err, inventory.ErrProductNotFound)
}

func (s *PostgresSuite) TestAdjust() {
	p := s.createProduct(2, 100)

	movement, err := s.inventory.Adjust(context.Background(), p.ID, &inventory.AdjustRequest{Delta: 8, Notes: "restock"}, nil)
	s.Require().NoError(err)
	s.Equal(inventory.MovementTypeInbound, movement.MovementType)
	s.Equal(10, movement.NewQuantity)

	_, err = s.inventory.Adjust(context.Background(), p.ID, &inventory.AdjustRequest{Delta: -11}, nil)
	s.ErrorIs(err, inventory.ErrInsufficientStock)
	s.Equal(10, s.stockOf(p.ID))
}

func (s *PostgresSuite) TestDiscountCodes() {
	ctx := context.Background()

	dc, err := s.discounts.Generate(ctx, &discount.GenerateRequest{
		Code:           "promo10",
		DiscountValue:  decimal.NewFromInt(10),
		ExpirationDate: time.Now().Add(24 * time.Hour),
	})
	s.Require().NoError(err)
	s.Equal("PROMO10", dc.Code)

	percent, err := s.discounts.Validate(ctx, " Promo10 ")
	s.Require().NoError(err)
	s.True(percent.Equal(decimal.NewFromInt(10)))

	_, err = s.discounts.Generate(ctx, &discount.GenerateRequest{
		Code:           "PROMO10",
		DiscountValue:  decimal.NewFromInt(5),
		ExpirationDate: time.Now().Add(time.Hour),
	})
	s.ErrorIs(err, discount.ErrCodeExists)

	s.Require().NoError(s.discounts.Deactivate(ctx, "promo10"))
	_, err = s.discounts.Validate(ctx, "PROMO10")
	s.ErrorIs(err, discount.ErrCodeInactive)

	_, err = s.discounts.Validate(ctx, "NOPE")
	s.ErrorIs(err, discount.ErrCodeNotFound)
}

func (s *PostgresSuite) TestConfirmPayment_ApprovedDecrementsOnce() {
	ctx := context.Background()
	a := s.createProduct(5, 1000)
	b := s.createProduct(2, 300)
	o := s.recordOrder(
		order.OrderItem{ProductID: a.ID, Title: a.Name, UnitPrice: a.Price, Quantity: 2},
		order.OrderItem{ProductID: b.ID, Title: b.Name, UnitPrice: b.Price, Quantity: 1},
	)
	s.Require().NoError(s.orders.AttachPreference(ctx, o.Reference, "pref-1"))

	paid, err := s.orders.ConfirmPayment(ctx, o.Reference, "111", payment.StatusApproved)
	s.Require().NoError(err)
	s.Equal(order.OrderStatusPaid, paid.Status)
	s.Equal("pref-1", paid.PreferenceID)
	s.NotNil(paid.PaidAt)
	s.Equal(3, s.stockOf(a.ID))
	s.Equal(1, s.stockOf(b.ID))

	again, err := s.orders.ConfirmPayment(ctx, o.Reference, "111", payment.StatusApproved)
	s.Require().NoError(err)
	s.Equal(order.OrderStatusPaid, again.Status)
	s.Equal(3, s.stockOf(a.ID))
}

func (s *PostgresSuite) TestConfirmPayment_StockConflictRollsBack() {
	ctx := context.Background()
	a := s.createProduct(5, 1000)
	b := s.createProduct(0, 300)
	o := s.recordOrder(
		order.OrderItem{ProductID: a.ID, Title: a.Name, UnitPrice: a.Price, Quantity: 1},
		order.OrderItem{ProductID: b.ID, Title: b.Name, UnitPrice: b.Price, Quantity: 1},
	)

	got, err := s.orders.ConfirmPayment(ctx, o.Reference, "222", payment.StatusApproved)
	s.Require().NoError(err)
	s.Equal(order.OrderStatusStockConflict, got.Status)
	s.NotEmpty(got.FailureReason)
	s.Equal(5, s.stockOf(a.ID))
	s.Equal(0, s.stockOf(b.ID))
}

func (s *PostgresSuite) TestConfirmPayment_NonApprovedStatuses() {
	ctx := context.Background()
	a := s.createProduct(5, 1000)
	o := s.recordOrder(order.OrderItem{ProductID: a.ID, Title: a.Name, UnitPrice: a.Price, Quantity: 1})

	got, err := s.orders.ConfirmPayment(ctx, o.Reference, "333", payment.StatusInProcess)
	s.Require().NoError(err)
	s.Equal(order.OrderStatusAwaitingPayment, got.Status)
	s.Equal(payment.StatusInProcess, got.PaymentStatus)

	got, err = s.orders.ConfirmPayment(ctx, o.Reference, "333", payment.StatusRejected)
	s.Require().NoError(err)
	s.Equal(order.OrderStatusFailed, got.Status)
	s.Equal(5, s.stockOf(a.ID))

	got, err = s.orders.ConfirmPayment(ctx, o.Reference, "334", payment.StatusApproved)
	s.Require().NoError(err)
	s.Equal(order.OrderStatusPaid, got.Status)
	s.Equal(4, s.stockOf(a.ID))
}

func (s *PostgresSuite) TestMarkFailedAndList() {
	ctx := context.Background()
	a := s.createProduct(5, 1000)
	o := s.recordOrder(order.OrderItem{ProductID: a.ID, Title: a.Name, UnitPrice: a.Price, Quantity: 1})
	s.recordOrder(order.OrderItem{ProductID: a.ID, Title: a.Name, UnitPrice: a.Price, Quantity: 1})

	s.Require().NoError(s.orders.MarkFailed(ctx, o.Reference, "gateway down"))
	s.ErrorIs(s.orders.MarkFailed(ctx, o.Reference, "again"), order.ErrInvalidTransition)

	resp, err := s.orders.List(ctx, &order.OrderListRequest{Status: order.OrderStatusFailed})
	s.Require().NoError(err)
	s.Equal(int64(1), resp.Pagination.Total)
	s.Equal(o.Reference, resp.Orders[0].Reference)
	s.Len(resp.Orders[0].Items, 1)

	_, err = s.orders.GetByReference(ctx, "missing")
	s.ErrorIs(err, order.ErrOrderNotFound)
}

func (s *PostgresSuite) TestAnalytics() {
	ctx := context.Background()
	a := s.createProduct(10, 1000)
	low := s.createProduct(3, 50)
	s.createProduct(0, 70)

	paid := s.recordOrder(order.OrderItem{ProductID: a.ID, Title: a.Name, UnitPrice: a.Price, Quantity: 2})
	_, err := s.orders.ConfirmPayment(ctx, paid.Reference, "900", payment.StatusApproved)
	s.Require().NoError(err)
	s.recordOrder(order.OrderItem{ProductID: low.ID, Title: low.Name, UnitPrice: low.Price, Quantity: 1})

	svc := analytics.NewService(s.db, 5, logger.Discard())

	stats, err := svc.GetDashboardStats(ctx)
	s.Require().NoError(err)
	s.True(stats.TotalRevenue.Equal(decimal.NewFromInt(2000)), stats.TotalRevenue.String())
	s.True(stats.AvgOrderValue.Equal(decimal.NewFromInt(2000)))
	s.Equal(int64(1), stats.PaidOrders)
	s.Equal(int64(1), stats.OrdersByStatus[string(order.OrderStatusPending)])
	s.Equal(int64(3), stats.ActiveProducts)
	s.Equal(int64(1), stats.OutOfStock)
	s.Equal(int64(1), stats.LowStock)
	s.Require().Len(stats.TopProducts, 1)
	s.Equal(a.ID, stats.TopProducts[0].ProductID)
	s.Equal(int64(2), stats.TopProducts[0].UnitsSold)

	sales, err := svc.GetSalesAnalytics(ctx, 7)
	s.Require().NoError(err)
	s.Require().Len(sales, 1)
	s.Equal(int64(1), sales[0].Orders)
	s.True(sales[0].Revenue.Equal(decimal.NewFromInt(2000)))
}

func (s *PostgresSuite) TestProductUpdate_KeepsConcurrentDecrement() {
	ctx := context.Background()
	p := s.createProduct(5, 1000)

	read, err := s.products.GetByID(ctx, p.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.inventory.DecrementIfAvailable(ctx, nil, p.ID, 1, "order-1"))

	read.Name = "Renamed"
	s.Require().NoError(s.products.Update(ctx, read))

	got, err := s.products.GetByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", got.Name)
	s.Equal(4, got.Stock)
}

func (s *PostgresSuite) TestProductRemoveImage() {
	ctx := context.Background()
	p := s.createProduct(1, 10)
	s.Require().NoError(s.products.AddImages(ctx, p.ID, []string{"/uploads/products/a.png", "/uploads/products/b.png"}))

	s.Require().NoError(s.products.RemoveImage(ctx, p.ID, "/uploads/products/a.png"))
	s.ErrorIs(s.products.RemoveImage(ctx, p.ID, "/uploads/products/a.png"), product.ErrImageNotFound)

	got, err := s.products.GetByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal([]string{"/uploads/products/b.png"}, got.ImageURLs())
}
