package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/insights-auth/internal/service"
)

// UserIDKey is the gin context key carrying the authenticated user ID.
const UserIDKey = "userID"

// Auth validates the Authorization header and attaches the user ID.
type Auth struct {
	AuthService *service.AuthService
}

// ValidateJWT ensures the request has a valid bearer access token.
func (m *Auth) ValidateJWT(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
		return
	}
	userID, err := m.AuthService.ValidateAccessToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
		return
	}
	c.Set(UserIDKey, userID)
	c.Next()
}

// GetUserID returns the authenticated user ID attached by ValidateJWT.
func GetUserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}
