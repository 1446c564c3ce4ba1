package middleware

import (
	"github.com/gin-gonic/gin"

	"pdf-chat-platform/internal/auth"
	"pdf-chat-platform/utils"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// RequireAuth validates the bearer token and stores the caller's identity
// on the request context.
func RequireAuth(tm *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			utils.RespondWithUnauthorized(c, "Missing or malformed Authorization header")
			c.Abort()
			return
		}

		claims, err := tm.ValidateAccessToken(token)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

// GetUserID returns the authenticated user's id, set by RequireAuth.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// GetUsername returns the authenticated username, set by RequireAuth.
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}
