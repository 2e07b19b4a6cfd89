package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostpanel/internal/models"
)

// RequireRole must run after Auth.
func RequireRole(role models.AdminRole) gin.HandlerFunc {
	message := "requires " + string(role) + " role"

	return func(c *gin.Context) {
		admin, ok := CurrentAdmin(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "no token")
			return
		}

		if admin.Role != role {
			abort(c, http.StatusForbidden, "forbidden", message)
			return
		}

		c.Next()
	}
}

func RequireSuperAdmin() gin.HandlerFunc {
	return RequireRole(models.AdminRoleSuperAdmin)
}
