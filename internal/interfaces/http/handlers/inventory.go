// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// InventoryHandler handles admin stock endpoints
type InventoryHandler struct {
	inventoryService *inventory.Service
	logger           logrus.FieldLogger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService *inventory.Service, logger logrus.FieldLogger) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// AdjustStock handles POST /admin/products/:id/stock
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req inventory.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	var createdBy *uint
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		createdBy = &userID
	}

	movement, err := h.inventoryService.Adjust(c.Request.Context(), c.Param("id"), &req, createdBy)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Product not found",
			})
		case errors.Is(err, inventory.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Stock cannot go below zero",
			})
		case errors.Is(err, inventory.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
		default:
			h.logger.WithError(err).WithField("product_id", c.Param("id")).Error("Failed to adjust stock")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to adjust stock",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock adjusted successfully",
		"data":    movement,
	})
}

// GetMovements handles GET /admin/products/:id/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	movements, err := h.inventoryService.Movements(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.WithError(err).WithField("product_id", c.Param("id")).Error("Failed to list stock movements")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve stock movements",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock movements retrieved successfully",
		"data":    movements,
	})
}
