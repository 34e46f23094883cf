package rbac

import (
	"net/http"

	"agent-console/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAgentPhone enforces that the caller has a phone number to match
// telephony events against. Without it a console could never see its calls.
func RequireAgentPhone() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.Agent(c.Request.Context())
		if err != nil || id.NormalizedPhone() == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent phone required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
