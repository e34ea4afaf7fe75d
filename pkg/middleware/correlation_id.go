package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/pkg/logger"
)

const (
	// CorrelationIDHeader carries the id on requests and responses.
	CorrelationIDHeader = "X-Correlation-ID"
	// RequestIDHeader is accepted from proxies that only set X-Request-ID.
	RequestIDHeader = "X-Request-ID"
	// CorrelationIDKey is the gin context key.
	CorrelationIDKey = "correlation_id"

	maxCorrelationIDLen = 128
)

// CorrelationID reuses the caller's id or mints one, then stores it in the gin
// context, in the request context (logger.WithContext and published events
// pick it up there) and on the response. Oversized ids are replaced.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = c.GetHeader(RequestIDHeader)
		}
		if id == "" || len(id) > maxCorrelationIDLen {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDKey, id)
		c.Request = c.Request.WithContext(logger.ContextWithCorrelationID(c.Request.Context(), id))
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// GetCorrelationID returns the id stored by CorrelationID.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}
