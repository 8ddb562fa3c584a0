// internal/interfaces/http/handlers/order.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// OrderHandler handles order lookup and receipt endpoints
type OrderHandler struct {
	orderService *order.Service
	logger       logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *order.Service, logger logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// GetOrder handles GET /orders/:reference. Shoppers only see orders of their own session.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, ok := h.sessionOrder(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    o,
	})
}

// DownloadReceipt handles GET /orders/:reference/receipt
func (h *OrderHandler) DownloadReceipt(c *gin.Context) {
	if _, ok := h.sessionOrder(c); !ok {
		return
	}

	o, pdf, err := h.orderService.Receipt(c.Request.Context(), c.Param("reference"))
	switch {
	case err == nil:
	case errors.Is(err, order.ErrReceiptUnavailable):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Receipt is only available for paid orders",
		})
		return
	case errors.Is(err, order.ErrReceiptNotSupported):
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Receipts are not enabled",
		})
		return
	default:
		h.logger.WithError(err).WithField("reference", c.Param("reference")).Error("Failed to generate receipt")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate receipt",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", o.Reference))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// AdminGetOrders handles GET /admin/orders
func (h *OrderHandler) AdminGetOrders(c *gin.Context) {
	req := &order.OrderListRequest{
		Status: order.OrderStatus(c.Query("status")),
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	response, err := h.orderService.List(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list orders")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve orders",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    response,
	})
}

// AdminGetOrder handles GET /admin/orders/:reference
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	o, err := h.orderService.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.notFoundOrError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    o,
	})
}

func (h *OrderHandler) sessionOrder(c *gin.Context) (*order.Order, bool) {
	o, err := h.orderService.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.notFoundOrError(c, err)
		return nil, false
	}

	if o.SessionID != middleware.GetSessionIDFromContext(c) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return nil, false
	}
	return o, true
}

func (h *OrderHandler) notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, order.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	h.logger.WithError(err).Error("Failed to retrieve order")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to retrieve order",
	})
}
