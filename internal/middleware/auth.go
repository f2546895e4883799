// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/auth"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

const (
	CallerKey    = "caller"
	UserIDKey    = "user_id"
	RequestIDKey = "request_id"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWith(c, apperr.Unauthorized("authorization header required"))
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			abortWith(c, apperr.Unauthorized("invalid or expired token"))
			return
		}
		setCaller(c, claims)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := tokens.Parse(token); err == nil {
				setCaller(c, claims)
			}
		}
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentCaller(c).IsAdmin() {
			abortWith(c, apperr.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

// CurrentCaller returns the authenticated caller, or nil for anonymous requests.
func CurrentCaller(c *gin.Context) *models.Caller {
	if v, ok := c.Get(CallerKey); ok {
		if caller, ok := v.(*models.Caller); ok {
			return caller
		}
	}
	return nil
}

func setCaller(c *gin.Context, claims *auth.Claims) {
	c.Set(CallerKey, claims.Caller())
	c.Set(UserIDKey, claims.UserID)
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func abortWith(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err.Kind), gin.H{"error": err.Message, "kind": err.Kind})
}

func abortTooManyRequests(c *gin.Context) {
	c.Header("Retry-After", "1")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "kind": "rate_limited"})
}
