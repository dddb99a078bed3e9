package authn

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "authn_claims"

// RequireAuth aborts the request with 401 unless a valid bearer token is
// present. On success, the claims are attached to the gin context.
func RequireAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verifyHeader(v, c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "detail": "unauthorized"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// OptionalAuth attaches claims to the context when a valid token is
// present, but never aborts the request. Used by routes that behave
// differently for authenticated vs anonymous callers (e.g. GET /agents/:id).
func OptionalAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := verifyHeader(v, c); err == nil {
			c.Set(claimsKey, claims)
		}
		c.Next()
	}
}

func verifyHeader(v *Verifier, c *gin.Context) (*Claims, error) {
	authHeader := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	return v.Verify(tokenStr)
}

// ClaimsFromContext returns the claims attached by RequireAuth/OptionalAuth,
// or nil if the request carried no valid token.
func ClaimsFromContext(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
