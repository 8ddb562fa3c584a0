// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/analytics"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/shipping"
	"github.com/your-org/storefront-backend/internal/domain/upload"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/mongo"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
	"github.com/your-org/storefront-backend/internal/interfaces/http"
	"github.com/your-org/storefront-backend/internal/interfaces/http/routes"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/pkg/pdf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logr.WithFields(logrus.Fields{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Infof("Starting %s", cfg.App.Name)

	ctx := context.Background()

	// Connect to database
	db, err := postgres.NewConnection(cfg, logr)
	if err != nil {
		logr.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Connect to Redis. It is required for redis cart persistence; otherwise
	// the service runs without the checkout lock and rate limiting.
	var redisClient *goredis.Client
	rdb, err := redis.NewConnection(ctx, cfg, logr)
	switch {
	case err == nil:
		defer rdb.Close()
		redisClient = rdb.GetClient()
	case cfg.Cart.Persistence == "redis":
		logr.WithError(err).Fatal("Failed to connect to Redis")
	default:
		logr.WithError(err).Warn("Redis unavailable, running without checkout lock and rate limiting")
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB(), logr)
	if err := migration.RunAutoMigrations(); err != nil {
		logr.WithError(err).Fatal("Database migration failed")
	}
	if err := migration.CreateIndexes(); err != nil {
		logr.WithError(err).Warn("Index creation failed")
	}
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			logr.WithError(err).Warn("Data seeding failed")
		}
	}

	persister, persisterCheck, closePersister, err := newCartPersister(ctx, cfg, redisClient, logr)
	if err != nil {
		logr.WithError(err).Fatal("Failed to set up cart persistence")
	}
	defer closePersister()

	// Domain services
	gateway := payment.NewMercadoPagoClient(cfg.Payment, logr)
	productService := product.NewService(product.NewRepository(db.GetDB()), cfg.Upload.MaxProductImages, logr)
	inventoryService := inventory.NewService(db.GetDB(), logr)
	discountService := discount.NewService(discount.NewRepository(db.GetDB()), logr)
	orderService := order.NewService(db.GetDB(), inventoryService, gateway, pdf.NewService(cfg), logr)

	jwtManager := auth.NewJWTManager(cfg)
	userService := user.NewService(user.NewRepository(db.GetDB()), jwtManager, auth.NewPasswordManager(cfg), logr)
	if err := userService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logr.WithError(err).Warn("Failed to ensure admin account")
	}

	cartService, err := cart.NewService(persister, catalogLookup(productService), discountService, shipping.NewCalculator(cfg.Shipping), cfg.Cart.MaxSessions, logr)
	if err != nil {
		logr.WithError(err).Fatal("Failed to create cart service")
	}

	checkoutService := checkout.NewService(cartService, inventoryService, gateway, orderService, redisClient, checkout.Options{
		Currency: cfg.Payment.Currency,
		BackURLs: payment.BackURLs{
			Success: cfg.Payment.SuccessURL,
			Failure: cfg.Payment.FailureURL,
			Pending: cfg.Payment.PendingURL,
		},
		AutoReturn:      cfg.Payment.AutoReturn,
		NotificationURL: cfg.Payment.NotificationURL,
		Timeout:         cfg.Checkout.Timeout,
	}, cfg.Checkout.LockTTL, logr)

	deps := routes.Dependencies{
		Config:    cfg,
		Logger:    logr,
		Tokens:    jwtManager,
		Carts:     cartService,
		Checkout:  checkoutService,
		Orders:    orderService,
		Products:  productService,
		Inventory: inventoryService,
		Discounts: discountService,
		Users:     userService,
		Uploads:   upload.NewService(cfg, logr),
		Analytics: analytics.NewService(db.GetDB(), cfg.Admin.LowStockThreshold, logr),
	}

	checks := []http.HealthCheck{
		{Name: "database", Check: func(context.Context) error { return db.Health() }},
	}
	if rdb != nil {
		checks = append(checks, http.HealthCheck{Name: "redis", Check: rdb.Health})
	}
	if persisterCheck != nil {
		checks = append(checks, *persisterCheck)
	}

	server := http.NewServer(cfg, logr, redisClient, deps, checks...)

	go func() {
		if err := server.Start(); err != nil {
			logr.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logr.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	logr.Info("Server shutdown completed")
}

// newCartPersister selects where session carts survive restarts. Backends
// not otherwise health checked come with their own check.
func newCartPersister(ctx context.Context, cfg *config.Config, redisClient *goredis.Client, logr logrus.FieldLogger) (cart.Persister, *http.HealthCheck, func(), error) {
	switch cfg.Cart.Persistence {
	case "redis":
		return cart.NewRedisPersister(redisClient, cfg.Cart.TTL), nil, func() {}, nil

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		client, err := mongo.NewConnection(connectCtx, cfg, logr)
		if err != nil {
			return nil, nil, nil, err
		}
		persister := cart.NewMongoPersister(client.Collection(cfg.Mongo.Collection))
		if err := persister.CreateIndexes(connectCtx, cfg.Cart.TTL); err != nil {
			logr.WithError(err).Warn("Failed to create cart indexes")
		}

		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(closeCtx); err != nil {
				logr.WithError(err).Warn("Failed to disconnect from MongoDB")
			}
		}
		return persister, &http.HealthCheck{Name: "mongo", Check: client.Health}, closeFn, nil

	case "none":
		return cart.NopPersister{}, nil, func() {}, nil
	}

	return nil, nil, nil, fmt.Errorf("unknown cart persistence %q", cfg.Cart.Persistence)
}

// catalogLookup exposes the product store to the cart
func catalogLookup(products *product.Service) cart.CatalogFunc {
	return func(ctx context.Context, productID string) (cart.CatalogProduct, error) {
		p, err := products.GetProduct(ctx, productID)
		if errors.Is(err, product.ErrProductNotFound) {
			return cart.CatalogProduct{}, cart.ErrProductNotFound
		}
		if err != nil {
			return cart.CatalogProduct{}, err
		}

		return cart.CatalogProduct{
			ID:        p.ID,
			Name:      p.Name,
			Price:     p.Price,
			ImageURLs: p.ImageURLs(),
			Paused:    p.Paused,
		}, nil
	}
}
