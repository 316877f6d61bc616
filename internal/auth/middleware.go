package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys for authenticated request data
const (
	ContextKeyUserID  = "auth_user_id"
	ContextKeyEmail   = "auth_email"
	ContextKeyIsAdmin = "auth_is_admin"
)

// Middleware provides gin middleware for authentication
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth rejects requests without a valid access token
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   ErrUnauthorized,
			})
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(token)
		if err != nil {
			authErr := ErrInvalidToken
			if e, ok := err.(AuthError); ok {
				authErr = e
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   authErr,
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// RequireAdmin rejects requests from non-admin users. Must run after RequireAuth.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   ErrForbidden,
			})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user's id from the request context
func GetUserID(c *gin.Context) (string, bool) {
	id, ok := c.Get(ContextKeyUserID)
	if !ok {
		return "", false
	}
	userID, ok := id.(string)
	return userID, ok
}

// GetEmail returns the authenticated user's email from the request context
func GetEmail(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextKeyEmail)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

// IsAdmin reports whether the authenticated user has the admin claim
func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(ContextKeyIsAdmin)
	if !ok {
		return false
	}
	isAdmin, _ := v.(bool)
	return isAdmin
}
