package middleware

import (
	"strings"

	"chatserver/internal/models"
	"chatserver/internal/services"
	"chatserver/internal/utils"
	"chatserver/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	ContextUser  = "auth_user"
	ContextToken = "auth_token"
)

// AuthRequired guards a route group with bearer-token authentication. The
// checks run cheapest first: header shape, then the revocation blacklist,
// then signature and expiry, then the user lookup. A soft-deleted or missing
// user fails even when the token itself is still valid.
func AuthRequired(revocations *services.RevocationStore, users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Token not provided")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Token not provided")
			return
		}
		tokenString := parts[1]

		revoked, err := revocations.IsRevoked(c.Request.Context(), tokenString)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if revoked {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		claims, err := utils.ParseAccessToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID, false)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextToken, tokenString)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.Error(c, response.NewUnauthorized(msg))
	c.Abort()
}

// GetUser returns the authenticated user attached by AuthRequired.
func GetUser(c *gin.Context) *models.User {
	if v, exists := c.Get(ContextUser); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// GetUserID returns the authenticated user's id, zero when unauthenticated.
func GetUserID(c *gin.Context) uint {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return 0
}

// GetToken returns the raw bearer token attached by AuthRequired.
func GetToken(c *gin.Context) string {
	if v, exists := c.Get(ContextToken); exists {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}
