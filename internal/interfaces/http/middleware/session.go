// internal/interfaces/http/middleware/session.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/storefront-backend/internal/config"
)

const SessionIDKey = "session_id"

// Session resolves the shopper's cart session from its cookie, issuing a
// new id when the cookie is missing or malformed.
func Session(cfg config.CartConfig, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cfg.CookieName)
		if err != nil || uuid.Validate(sessionID) != nil {
			sessionID = uuid.NewString()
		}

		// Refresh the expiry on every request
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, sessionID, cfg.CookieMaxAge, "/", "", secure, true)

		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}

// GetSessionIDFromContext returns the session id set by Session
func GetSessionIDFromContext(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
