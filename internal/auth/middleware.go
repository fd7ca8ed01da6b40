package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
)

const (
	ctxUserID    = "user_id"
	ctxUserEmail = "user_email"
	ctxUserRole  = "user_role"
)

func AuthMiddleware(secret, audience string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			api.Abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "Bearer") {
			api.Abort(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			api.Abort(c, http.StatusUnauthorized, "Token is empty")
			return
		}

		claims, err := ValidateToken(tokenString, secret, audience)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				api.Abort(c, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, ErrMissingSubject):
				api.Abort(c, http.StatusUnauthorized, "Token has no subject")
			default:
				api.Abort(c, http.StatusUnauthorized, "Invalid or malformed token")
			}
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserRole, claims.Role)

		c.Next()
	}
}

func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ctxUserRole)
		if !exists {
			api.Abort(c, http.StatusUnauthorized, "User role not found")
			return
		}

		roleStr, ok := role.(string)
		if !ok {
			api.Abort(c, http.StatusUnauthorized, "Invalid role type")
			return
		}

		if roleStr != requiredRole {
			api.Abort(c, http.StatusForbidden, "Insufficient permissions")
			return
		}

		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

// SetUserID marks c as authenticated as userID.
func SetUserID(c *gin.Context, userID string) {
	c.Set(ctxUserID, userID)
}
