// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
)

// PaymentNotifier reconciles an order with the gateway's view of a payment
type PaymentNotifier interface {
	HandlePaymentNotification(ctx context.Context, paymentID string) (*order.Order, error)
}

// PaymentHandler handles MercadoPago notifications and back-URL landings
type PaymentHandler struct {
	notifier      PaymentNotifier
	webhookSecret string
	logger        logrus.FieldLogger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(notifier PaymentNotifier, webhookSecret string, logger logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		notifier:      notifier,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// notification is the webhook body sent by MercadoPago
type notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// dataID accepts the id both as a JSON string and as a number
func (n notification) dataID() string {
	return strings.Trim(string(bytes.TrimSpace(n.Data.ID)), `"`)
}

// WebhookHandler handles POST /webhooks/mercadopago
func (h *PaymentHandler) WebhookHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	var n notification
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid JSON payload",
			})
			return
		}
	}

	// Query parameters take precedence, they are what the signature covers
	eventType := c.DefaultQuery("type", n.Type)
	if eventType == "" {
		eventType = c.Query("topic")
	}
	dataID := c.DefaultQuery("data.id", n.dataID())
	if dataID == "" {
		dataID = c.Query("id")
	}

	if eventType != "payment" {
		h.logger.WithField("type", eventType).Debug("Ignoring webhook event")
		c.JSON(http.StatusOK, gin.H{
			"status": "ignored",
		})
		return
	}
	if dataID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing payment id",
		})
		return
	}

	if err := payment.VerifyWebhookSignature(h.webhookSecret, c.GetHeader("x-signature"), c.GetHeader("x-request-id"), dataID); err != nil {
		h.logger.WithField("payment_id", dataID).Warn("Rejected webhook with invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid signature",
		})
		return
	}

	o, err := h.notifier.HandlePaymentNotification(c.Request.Context(), dataID)
	switch {
	case err == nil:
		h.logger.WithFields(logrus.Fields{
			"payment_id": dataID,
			"reference":  o.Reference,
			"status":     o.Status,
		}).Info("Payment notification processed")
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrPaymentMismatch):
		// Not ours; acknowledge so the gateway stops retrying
		h.logger.WithError(err).WithField("payment_id", dataID).Warn("Payment notification does not match an order")
		c.JSON(http.StatusOK, gin.H{
			"status": "ignored",
		})
		return
	default:
		h.logger.WithError(err).WithField("payment_id", dataID).Error("Failed to process payment notification")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process notification",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "received",
	})
}

// Landing returns the handler for a back-URL page (success, failure or pending).
// The webhook stays authoritative; a success landing with a payment id also
// reconciles the order so it is current when the buyer looks at it.
func (h *PaymentHandler) Landing(outcome string) gin.HandlerFunc {
	messages := map[string]string{
		"success": "Payment approved",
		"failure": "Payment failed",
		"pending": "Payment pending",
	}

	return func(c *gin.Context) {
		paymentID := c.Query("payment_id")
		if paymentID == "" {
			paymentID = c.Query("collection_id")
		}
		status := c.Query("status")
		if status == "" {
			status = c.Query("collection_status")
		}

		data := gin.H{
			"outcome":       outcome,
			"reference":     c.Query("external_reference"),
			"payment_id":    paymentID,
			"payment_state": status,
			"preference_id": c.Query("preference_id"),
		}

		if outcome == "success" && paymentID != "" && paymentID != "null" {
			o, err := h.notifier.HandlePaymentNotification(c.Request.Context(), paymentID)
			if err != nil {
				h.logger.WithError(err).WithField("payment_id", paymentID).Warn("Failed to reconcile payment from landing")
			} else {
				data["order_status"] = o.Status
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"message": messages[outcome],
			"data":    data,
		})
	}
}
