// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/pricing"
	"github.com/your-org/storefront-backend/internal/domain/shipping"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// CartHandler handles session cart endpoints
type CartHandler struct {
	cartService *cart.Service
	currency    string
	logger      logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, currency string, logger logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		currency:    currency,
		logger:      logger,
	}
}

// CartResponse is a cart with its computed totals
type CartResponse struct {
	cart.Snapshot
	ItemCount int             `json:"item_count"`
	Totals    pricing.Display `json:"totals"`
}

// AddToCartRequest represents an add-to-cart request
type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest represents a quantity change
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// ApplyDiscountRequest represents a discount code entry
type ApplyDiscountRequest struct {
	Code string `json:"code" binding:"required"`
}

// SetShippingRequest represents a postal code entry
type SetShippingRequest struct {
	PostalCode string `json:"postal_code" binding:"required"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	sessionID := middleware.GetSessionIDFromContext(c)
	snap := h.cartService.Snapshot(c.Request.Context(), sessionID)
	h.respond(c, http.StatusOK, "Cart retrieved successfully", snap)
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	sessionID := middleware.GetSessionIDFromContext(c)
	snap, err := h.cartService.AddProduct(c.Request.Context(), sessionID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, "Item added to cart successfully", snap)
}

// UpdateCartItem handles PUT /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	sessionID := middleware.GetSessionIDFromContext(c)
	snap, err := h.cartService.UpdateQuantity(c.Request.Context(), sessionID, c.Param("id"), req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, "Cart item updated successfully", snap)
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	sessionID := middleware.GetSessionIDFromContext(c)
	snap := h.cartService.RemoveLine(c.Request.Context(), sessionID, c.Param("id"))
	h.respond(c, http.StatusOK, "Item removed from cart successfully", snap)
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	sessionID := middleware.GetSessionIDFromContext(c)
	h.cartService.Clear(c.Request.Context(), sessionID)
	h.respond(c, http.StatusOK, "Cart cleared successfully", h.cartService.Snapshot(c.Request.Context(), sessionID))
}

// ApplyDiscount handles POST /cart/discount
func (h *CartHandler) ApplyDiscount(c *gin.Context) {
	var req ApplyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	sessionID := middleware.GetSessionIDFromContext(c)
	if _, err := h.cartService.ApplyDiscountCode(c.Request.Context(), sessionID, req.Code); err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, "Discount applied successfully", h.cartService.Snapshot(c.Request.Context(), sessionID))
}

// RemoveDiscount handles DELETE /cart/discount
func (h *CartHandler) RemoveDiscount(c *gin.Context) {
	sessionID := middleware.GetSessionIDFromContext(c)
	if err := h.cartService.RemoveDiscount(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, "Discount removed successfully", h.cartService.Snapshot(c.Request.Context(), sessionID))
}

// SetShipping handles POST /cart/shipping
func (h *CartHandler) SetShipping(c *gin.Context) {
	var req SetShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	sessionID := middleware.GetSessionIDFromContext(c)
	if _, err := h.cartService.SetShipping(c.Request.Context(), sessionID, req.PostalCode); err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, "Shipping cost applied successfully", h.cartService.Snapshot(c.Request.Context(), sessionID))
}

// CancelShipping handles DELETE /cart/shipping
func (h *CartHandler) CancelShipping(c *gin.Context) {
	sessionID := middleware.GetSessionIDFromContext(c)
	if err := h.cartService.CancelShipping(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusOK, "Shipping removed successfully", h.cartService.Snapshot(c.Request.Context(), sessionID))
}

func (h *CartHandler) respond(c *gin.Context, status int, message string, snap cart.Snapshot) {
	totals, err := pricing.Calculate(snap).Display(h.currency)
	if err != nil {
		h.logger.WithError(err).Error("Failed to format cart totals")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve cart",
		})
		return
	}

	c.JSON(status, gin.H{
		"message": message,
		"data": CartResponse{
			Snapshot:  snap,
			ItemCount: snap.TotalQuantity(),
			Totals:    totals,
		},
	})
}

func (h *CartHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Failed to update cart"

	switch {
	case errors.Is(err, cart.ErrInvalidLineIdentifier),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, cart.ErrInvalidShippingCost),
		errors.Is(err, cart.ErrInvalidDiscount),
		errors.Is(err, discount.ErrEmptyCode),
		errors.Is(err, shipping.ErrInvalidPostalCode):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, cart.ErrProductNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, discount.ErrCodeNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, cart.ErrProductUnavailable):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, discount.ErrCodeExpired),
		errors.Is(err, discount.ErrCodeInactive):
		status, message = http.StatusUnprocessableEntity, err.Error()
	default:
		h.logger.WithError(err).Error("Cart operation failed")
	}

	c.JSON(status, gin.H{
		"error": message,
	})
}
