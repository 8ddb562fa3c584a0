// internal/interfaces/http/handlers/discount.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/discount"
)

// DiscountHandler handles admin discount code endpoints
type DiscountHandler struct {
	discountService *discount.Service
	logger          logrus.FieldLogger
}

// NewDiscountHandler creates a new discount handler
func NewDiscountHandler(discountService *discount.Service, logger logrus.FieldLogger) *DiscountHandler {
	return &DiscountHandler{
		discountService: discountService,
		logger:          logger,
	}
}

// AdminCreateDiscount handles POST /admin/discounts
func (h *DiscountHandler) AdminCreateDiscount(c *gin.Context) {
	var req discount.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	dc, err := h.discountService.Generate(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrCodeExists):
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
			})
		case errors.Is(err, discount.ErrInvalidValue), errors.Is(err, discount.ErrInvalidExpiry):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
		default:
			h.logger.WithError(err).Error("Failed to generate discount code")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate discount code",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Discount code created successfully",
		"data":    dc,
	})
}

// AdminDeactivateDiscount handles DELETE /admin/discounts/:code
func (h *DiscountHandler) AdminDeactivateDiscount(c *gin.Context) {
	err := h.discountService.Deactivate(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, discount.ErrCodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.WithError(err).Error("Failed to deactivate discount code")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to deactivate discount code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Discount code deactivated successfully",
	})
}
