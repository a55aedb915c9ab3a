package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"trading_backend/services/auth"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware validates access tokens and stores the authenticated
// user in the request context. The token is read from the Authorization
// header, falling back to the "token" query parameter for WebSocket
// clients that cannot set headers.
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authorization header is required",
			})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("Invalid token: %v", err),
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", claims.Role)

		c.Next()
	}
}

// extractToken pulls the token from "Bearer <token>" or the query string
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
		return ""
	}
	return c.Query("token")
}

// GetUserIDFromContext gets the authenticated user id from context
func GetUserIDFromContext(c *gin.Context) (uint, error) {
	value, exists := c.Get("user_id")
	if !exists {
		return 0, errors.New("user not authenticated")
	}
	userID, ok := value.(uint)
	if !ok {
		return 0, errors.New("invalid user id in context")
	}
	return userID, nil
}
