package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"support-service/internal/identity"
	"support-service/internal/models"
)

const (
	// IdentityKey is the gin context key holding the resolved models.Identity.
	IdentityKey = "identity"
	// VisitorTokenHeader carries the anonymous per-browser-session token in
	// both directions. When a request arrives without one, the middleware
	// mints a token and echoes it back so the client can persist it.
	VisitorTokenHeader = "X-Visitor-Token"
)

// IdentityMiddleware resolves the caller to an identity: an authenticated
// user via the bearer token and the identity provider, or an anonymous
// visitor via the visitor token header. Every request downstream can rely on
// an identity being present.
func IdentityMiddleware(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
				return
			}

			ident, err := provider.Lookup(c.Request.Context(), parts[1])
			if err != nil {
				if errors.Is(err, identity.ErrInvalidToken) {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
					return
				}
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "identity lookup failed"})
				return
			}

			c.Set(IdentityKey, ident)
			c.Next()
			return
		}

		token := c.GetHeader(VisitorTokenHeader)
		if token == "" {
			token = "anon:" + uuid.NewString()
		}
		c.Header(VisitorTokenHeader, token)
		c.Set(IdentityKey, models.Identity{
			Token:     token,
			Name:      "Guest",
			Role:      models.RoleVisitor,
			Anonymous: true,
		})
		c.Next()
	}
}

// IdentityFromContext extracts the resolved identity set by the middleware.
func IdentityFromContext(c *gin.Context) (models.Identity, bool) {
	val, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	ident, ok := val.(models.Identity)
	return ident, ok
}
