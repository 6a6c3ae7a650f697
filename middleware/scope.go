package middleware

import (
	"campus-ministry-api/config"
	"campus-ministry-api/rls"
	"net/http"

	"github.com/gin-gonic/gin"
)

const scopeContextKey = "userScope"

// ScopeMiddleware resolves the caller's scope once per request and aborts
// with 401 when no scope resolves. Runs after AuthMiddleware.
func ScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		scope, err := rls.ResolveScope(config.DB, userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve scope"})
			c.Abort()
			return
		}
		if scope == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no role assignment"})
			c.Abort()
			return
		}

		c.Set(scopeContextKey, *scope)
		c.Next()
	}
}

// GetScope returns the scope stored by ScopeMiddleware.
func GetScope(c *gin.Context) (rls.UserScope, bool) {
	v, ok := c.Get(scopeContextKey)
	if !ok {
		return rls.UserScope{}, false
	}
	scope, ok := v.(rls.UserScope)
	return scope, ok
}
