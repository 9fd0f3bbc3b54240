package middleware

import (
	"time"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestLogger tags each request with an ID (kept from the client's
// X-Request-ID when present) and logs it on completion. WebSocket upgrades
// are logged once the connection ends.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = id.NewRequestID()
		}
		c.Set(requestIDKey, reqID)
		c.Header(RequestIDHeader, reqID)

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			logger.Warn("Request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		logger.Debug("Request completed", fields...)
	}
}

// RequestID returns the ID assigned by RequestLogger, if any.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
