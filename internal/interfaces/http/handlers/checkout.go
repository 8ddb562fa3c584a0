// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	logger          logrus.FieldLogger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *checkout.Service, logger logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// stateEvent is the SSE payload of one transition
type stateEvent struct {
	State  checkout.State   `json:"state"`
	Result *checkout.Result `json:"result,omitempty"`
	Error  *checkoutError   `json:"error,omitempty"`
}

type checkoutError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Checkout handles POST /checkout and waits for the redirect URL
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	sessionID := middleware.GetSessionIDFromContext(c)

	result, err := h.checkoutService.Run(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, sessionID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout created successfully",
		"data":    result,
	})
}

// Stream handles GET /checkout/stream, reporting every state as a server-sent event
func (h *CheckoutHandler) Stream(c *gin.Context) {
	sessionID := middleware.GetSessionIDFromContext(c)

	transitions, err := h.checkoutService.Start(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, sessionID, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		t, ok := <-transitions
		if !ok {
			return false
		}

		event := stateEvent{State: t.State, Result: t.Result}
		if t.Err != nil {
			event.Error = &checkoutError{
				Code:    checkout.Code(t.Err),
				Message: checkout.UserMessage(t.Err),
			}
			h.logFailure(sessionID, t.Err)
		}
		c.SSEvent("state", event)

		return !t.State.IsTerminal()
	})
}

func (h *CheckoutHandler) fail(c *gin.Context, sessionID string, err error) {
	h.logFailure(sessionID, err)

	response := gin.H{
		"error": checkout.UserMessage(err),
		"code":  checkout.Code(err),
	}

	var stockErr *checkout.StockRejectedError
	if errors.As(err, &stockErr) {
		response["details"] = gin.H{
			"product_id": stockErr.ProductID,
			"name":       stockErr.Name,
			"reason":     stockErr.Reason,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		}
	}

	c.JSON(checkoutStatus(err), response)
}

func (h *CheckoutHandler) logFailure(sessionID string, err error) {
	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"session_id": sessionID,
		"code":       checkout.Code(err),
	})
	if checkoutStatus(err) >= http.StatusInternalServerError {
		entry.Error("Checkout failed")
		return
	}
	entry.Info("Checkout rejected")
}

// checkoutStatus maps a checkout error to its HTTP status
func checkoutStatus(err error) int {
	var stockErr *checkout.StockRejectedError
	var discountErr *checkout.DiscountRejectedError
	var gatewayErr *checkout.GatewayError

	switch {
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrInvalidLineIdentifier):
		return http.StatusBadRequest
	case errors.As(err, &discountErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &stockErr), errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	case errors.Is(err, checkout.ErrCheckoutCancelled), errors.Is(err, checkout.ErrCheckoutTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, checkout.ErrOrderNotRecorded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
