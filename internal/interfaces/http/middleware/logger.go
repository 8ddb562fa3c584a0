// internal/interfaces/http/middleware/logger.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger logs every request through logrus. Health check paths are not logged.
func Logger(logger logrus.FieldLogger, skipPaths ...string) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: skipPaths,
		Formatter: func(param gin.LogFormatterParams) string {
			fields := logrus.Fields{
				"request_id": param.Keys[RequestIDKey],
				"method":     param.Method,
				"path":       param.Path,
				"status":     param.StatusCode,
				"latency_ms": param.Latency.Milliseconds(),
				"client_ip":  param.ClientIP,
				"bytes":      param.BodySize,
			}
			if sessionID, ok := param.Keys[SessionIDKey]; ok {
				fields["session_id"] = sessionID
			}
			entry := logger.WithFields(fields)
			if param.ErrorMessage != "" {
				entry = entry.WithField("error", param.ErrorMessage)
			}

			switch {
			case param.StatusCode >= 500:
				entry.Error("Request failed")
			case param.StatusCode >= 400:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request served")
			}
			return ""
		},
	})
}
