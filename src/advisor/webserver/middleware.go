package webserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

const identityKey = "identity"

// AuthRequired extracts the bearer token, verifies it, and attaches the
// resolved identity to the request context. Failures short-circuit before any
// agent logic runs.
func AuthRequired(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "missing bearer token", "kind": types.KindInvalidToken})
			return
		}
		identity, err := tokens.Verify(h[7:])
		if err != nil {
			c.AbortWithStatusJSON(statusFor(err), gin.H{"err": "token rejected", "kind": types.KindOf(err)})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole gates a route on the resolved role.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CurrentIdentity(c)
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"err": "insufficient role", "kind": types.KindUnauthorized})
	}
}

// CurrentIdentity returns the identity attached by AuthRequired.
func CurrentIdentity(c *gin.Context) auth.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(auth.Identity)
	return identity
}

func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindInvalidToken, types.KindSessionExpired:
		return http.StatusUnauthorized
	case types.KindUnauthorized:
		return http.StatusForbidden
	case types.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
