package middleware

import (
	"pfmt-portal/internal/identity"
	"pfmt-portal/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CurrentUserKey is where the resolved principal lives in the gin context.
const CurrentUserKey = "CurrentUser"

// InjectUser resolves the session's claims into a durable principal on every
// request. Resolution is self-healing and never blocks the request.
func InjectUser(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uidRaw := sess.Get("user_id"); uidRaw != nil {
			if uid, ok := uidRaw.(uint); ok && uid > 0 {
				roleStr, _ := sess.Get("role").(string)
				username, _ := sess.Get("username").(string)
				display, _ := sess.Get("display_name").(string)

				user := resolver.Resolve(c.Request.Context(), identity.Claims{
					UserID:      uid,
					Username:    username,
					DisplayName: display,
					Role:        roleStr,
				})
				c.Set(CurrentUserKey, user)
			}
		}

		c.Next()
	}
}

// CurrentUser pulls the resolved principal out of the gin context.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(CurrentUserKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := val.(models.User)
	return u, ok
}
