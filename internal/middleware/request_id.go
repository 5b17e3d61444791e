package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation id. Clients and upstream
// proxies may set it; otherwise one is generated per request.
const RequestIDHeader = "X-Request-ID"

// GinRequestIDKey is the key used to store the request id in the gin context
const GinRequestIDKey = "request_id"

// RequestID returns a middleware that ensures every request carries a
// correlation id. An incoming id is kept only if it parses as a UUID, so log
// correlation cannot be polluted by arbitrary client strings.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		c.Set(GinRequestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID returns the request id stored by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(GinRequestIDKey)
}
