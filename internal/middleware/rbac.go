package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
	"github.com/noah-isme/creatia-api/pkg/response"
)

// RBAC enforces role-based access control for routes. The pseudo role SELF
// admits a user whose id matches the :id route parameter.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == strconv.FormatInt(claims.UserID, 10) {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "Not allowed"))
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
