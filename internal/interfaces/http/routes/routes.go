// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/analytics"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/upload"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// Dependencies are the services the HTTP layer is built on
type Dependencies struct {
	Config *config.Config
	Logger logrus.FieldLogger
	Tokens middleware.TokenValidator

	Carts     *cart.Service
	Checkout  *checkout.Service
	Orders    *order.Service
	Products  *product.Service
	Inventory *inventory.Service
	Discounts *discount.Service
	Users     *user.Service
	Uploads   *upload.Service
	Analytics *analytics.Service
}

// SetupStoreRoutes sets up the public catalog, cart and checkout routes
func SetupStoreRoutes(rg *gin.RouterGroup, deps Dependencies) {
	productHandler := handlers.NewProductHandler(deps.Products, deps.Uploads, deps.Logger)
	cartHandler := handlers.NewCartHandler(deps.Carts, deps.Config.Payment.Currency, deps.Logger)
	checkoutHandler := handlers.NewCheckoutHandler(deps.Checkout, deps.Logger)
	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Logger)

	rg.GET("/catalog", productHandler.GetCatalog)
	rg.GET("/products/:id", productHandler.GetProduct)

	store := rg.Group("")
	store.Use(middleware.Session(deps.Config.Cart, deps.Config.IsProduction()))
	{
		cartRoutes := store.Group("/cart")
		{
			cartRoutes.GET("", cartHandler.GetCart)
			cartRoutes.DELETE("", cartHandler.ClearCart)
			cartRoutes.POST("/items", cartHandler.AddToCart)
			cartRoutes.PUT("/items/:id", cartHandler.UpdateCartItem)
			cartRoutes.DELETE("/items/:id", cartHandler.RemoveFromCart)
			cartRoutes.POST("/discount", cartHandler.ApplyDiscount)
			cartRoutes.DELETE("/discount", cartHandler.RemoveDiscount)
			cartRoutes.POST("/shipping", cartHandler.SetShipping)
			cartRoutes.DELETE("/shipping", cartHandler.CancelShipping)
		}

		checkoutRoutes := store.Group("/checkout")
		{
			checkoutRoutes.POST("", checkoutHandler.Checkout)
			checkoutRoutes.GET("/stream", checkoutHandler.Stream)
		}

		orders := store.Group("/orders")
		{
			orders.GET("/:reference", orderHandler.GetOrder)
			orders.GET("/:reference/receipt", orderHandler.DownloadReceipt)
		}
	}
}

// SetupPaymentRoutes sets up the gateway webhook and back-URL landings
func SetupPaymentRoutes(rg *gin.RouterGroup, deps Dependencies) {
	paymentHandler := handlers.NewPaymentHandler(deps.Orders, deps.Config.Payment.WebhookSecret, deps.Logger)

	rg.POST("/webhooks/mercadopago", paymentHandler.WebhookHandler)

	payments := rg.Group("/payments")
	{
		payments.GET("/success", paymentHandler.Landing("success"))
		payments.GET("/failure", paymentHandler.Landing("failure"))
		payments.GET("/pending", paymentHandler.Landing("pending"))
	}
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Logger)

	auth := rg.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}
}

// SetupAdminRoutes sets up admin related routes
func SetupAdminRoutes(rg *gin.RouterGroup, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Logger)
	productHandler := handlers.NewProductHandler(deps.Products, deps.Uploads, deps.Logger)
	inventoryHandler := handlers.NewInventoryHandler(deps.Inventory, deps.Logger)
	discountHandler := handlers.NewDiscountHandler(deps.Discounts, deps.Logger)
	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Logger)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Analytics, deps.Logger)

	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(deps.Tokens)) // Require authentication
	admin.Use(middleware.AdminMiddleware())          // Require admin privileges
	{
		admin.GET("/me", authHandler.GetCurrentUser)

		// Product management
		products := admin.Group("/products")
		{
			products.GET("", productHandler.AdminGetProducts)
			products.POST("", productHandler.AdminCreateProduct)
			products.GET("/:id", productHandler.AdminGetProduct)
			products.PUT("/:id", productHandler.AdminUpdateProduct)
			products.DELETE("/:id", productHandler.AdminDeleteProduct)
			products.PATCH("/:id/pause", productHandler.AdminTogglePause)
			products.POST("/:id/images", productHandler.AdminUploadImages)
			products.DELETE("/:id/images", productHandler.AdminRemoveImage)
			products.POST("/:id/stock", inventoryHandler.AdjustStock)
			products.GET("/:id/movements", inventoryHandler.GetMovements)
		}

		// Discount codes
		discounts := admin.Group("/discounts")
		{
			discounts.POST("", discountHandler.AdminCreateDiscount)
			discounts.DELETE("/:code", discountHandler.AdminDeactivateDiscount)
		}

		// Order management
		orders := admin.Group("/orders")
		{
			orders.GET("", orderHandler.AdminGetOrders)
			orders.GET("/:reference", orderHandler.AdminGetOrder)
		}

		// Reports
		reports := admin.Group("/analytics")
		{
			reports.GET("/dashboard", analyticsHandler.GetDashboard)
			reports.GET("/sales", analyticsHandler.GetSales)
			reports.GET("/products", analyticsHandler.GetTopProducts)
		}
	}
}

// SetupRoutes registers every API route group
func SetupRoutes(rg *gin.RouterGroup, deps Dependencies) {
	SetupStoreRoutes(rg, deps)
	SetupPaymentRoutes(rg, deps)
	SetupAuthRoutes(rg, deps)
	SetupAdminRoutes(rg, deps)
}
