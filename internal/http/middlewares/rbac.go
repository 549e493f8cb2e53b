package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole lets the request through when the caller's current role is one
// of allowed. It must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(allowed ...user.Role) gin.HandlerFunc {
	names := make([]string, 0, len(allowed))
	for _, r := range allowed {
		names = append(names, string(r))
	}
	msg := strings.Join(names, " or ") + " role required"

	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok {
			abortUnauthorized(c, "Missing identity context")
			return
		}
		if !role.In(allowed...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": msg,
				},
			})
			return
		}
		c.Next()
	}
}
