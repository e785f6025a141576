package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clubhub/internal/access"
)

const identityKey = "identity"

// RequireBearer enforces bearer access tokens and stores the caller identity.
func RequireBearer(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "unauthenticated"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := tokens.Parse(tokenStr, TokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthenticated"})
			return
		}
		c.Set(identityKey, claims.Identity())
		c.Next()
	}
}

// CurrentIdentity returns the authenticated caller, or the zero Identity.
func CurrentIdentity(c *gin.Context) access.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return access.Identity{}
	}
	id, _ := v.(access.Identity)
	return id
}
