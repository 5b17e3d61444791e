// Package middleware provides identity, validation and recovery middleware for the Gin web framework.
package middleware

import (
	"net/http"
	"strings"

	contextutils "prepapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the authenticated user id, set by the reverse proxy
// in front of this service. The service trusts it; authentication itself
// happens upstream.
const UserIDHeader = "X-User-ID"

// GinUserIDKey is the key used to store the user id in the gin context
const GinUserIDKey = "user_id"

// RequireUser returns a middleware that requires an authenticated user id on
// the request. The id is stored in both the gin context and the request
// context so services and spans can pick it up.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  string(contextutils.ErrorCodeUnauthorized),
			})
			c.Abort()
			return
		}

		c.Set(GinUserIDKey, userID)
		c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// GetUserID returns the authenticated user id stored by RequireUser
func GetUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(GinUserIDKey)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}
