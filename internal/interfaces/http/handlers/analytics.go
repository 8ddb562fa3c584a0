// internal/interfaces/http/handlers/analytics.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/analytics"
)

// AnalyticsHandler handles admin reporting endpoints
type AnalyticsHandler struct {
	analyticsService *analytics.Service
	logger           logrus.FieldLogger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *analytics.Service, logger logrus.FieldLogger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// GetDashboard handles GET /admin/analytics/dashboard
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	stats, err := h.analyticsService.GetDashboardStats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get dashboard stats")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve dashboard statistics",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Dashboard statistics retrieved successfully",
		"data":    stats,
	})
}

// GetSales handles GET /admin/analytics/sales
func (h *AnalyticsHandler) GetSales(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	sales, err := h.analyticsService.GetSalesAnalytics(c.Request.Context(), days)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get sales analytics")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve sales analytics",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sales analytics retrieved successfully",
		"data":    sales,
	})
}

// GetTopProducts handles GET /admin/analytics/products
func (h *AnalyticsHandler) GetTopProducts(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	products, err := h.analyticsService.GetTopProducts(c.Request.Context(), days, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get product analytics")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve product analytics",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product analytics retrieved successfully",
		"data":    products,
	})
}
