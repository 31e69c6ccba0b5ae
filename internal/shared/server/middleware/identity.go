package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userId"

// Identity records the caller-declared user from the X-User-Id header. The value
// is trusted as-is; it keys rate limits and request logs, never authorization.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader("X-User-Id")); id != "" {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

// SetUserID stores the user a handler resolved from its request body.
func SetUserID(c *gin.Context, userID string) {
	if c == nil || strings.TrimSpace(userID) == "" {
		return
	}
	c.Set(userIDKey, userID)
}

// UserIDFromContext fetches the user ID recorded for the request.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
