package middleware

import (
	"net/http"

	"pfmt-portal/internal/roles"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		userID := sess.Get("user_id")
		if userID == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "AUTH_REQUIRED", "message": "authentication required"},
			})
			return
		}
		c.Next()
	}
}

// RequireRole is the coarse route-level gate. The fine-grained decision
// (relationship, state) still happens in the authorization gateway; this
// only keeps obviously wrong roles off the route.
func RequireRole(allowed ...roles.Role) gin.HandlerFunc {
	roleSet := map[roles.Role]struct{}{}
	for _, r := range allowed {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		sess := sessions.Default(c)
		roleVal, _ := sess.Get("role").(string)
		role := roles.Normalize(roleVal)

		if _, ok := roleSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "insufficient role",
					"current": string(role),
				},
			})
			return
		}
		c.Next()
	}
}
