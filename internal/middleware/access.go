package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
	"github.com/keek-conecta/escuta-api/pkg/response"
)

// RequireRoles blocks requests whose account role is not in the given list.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ProjectAccess enforces a minimum access level on the project addressed by
// the request. The project id is taken from the "projetoId" path parameter,
// falling back to the query string. Admin accounts bypass the check.
func ProjectAccess(required models.AccessLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if claims.Role == models.RoleAdmin {
			c.Next()
			return
		}

		projetoID, ok := requestProjectID(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "projetoId is required"))
			c.Abort()
			return
		}

		level, granted := claims.ProjectLevels[projetoID]
		if !granted || !level.Allows(required) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestProjectID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Param("projetoId"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("projetoId"))
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
