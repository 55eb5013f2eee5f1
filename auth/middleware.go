package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tutorhive/livehub/internal/slogging"
	"github.com/tutorhive/livehub/realtime"
)

// Middleware returns a gin middleware that validates the bearer token and
// publishes the resolved identity into the request context. Browsers
// cannot set headers on WebSocket requests, so a ?token= query parameter
// is accepted as a fallback on the upgrade request.
func Middleware(validator *Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "missing bearer token",
			})
			c.Abort()
			return
		}

		claims, err := validator.Validate(tokenStr)
		if err != nil {
			slogging.Get().Debug("token validation failed: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid or expired token",
			})
			c.Abort()
			return
		}

		if claims.GhostSessionID != "" {
			c.Set(realtime.ContextKeyGhostSessionID, claims.GhostSessionID)
		} else {
			c.Set(realtime.ContextKeyUserID, claims.UserID)
			c.Set(realtime.ContextKeyUserRole, claims.Role)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
