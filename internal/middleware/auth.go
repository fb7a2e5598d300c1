// internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/license-authority/internal/i18n"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/utils"
)

const TenantContextKey = "tenant_context"

// AuthRequired verifies the bearer token and stores the caller's
// TenantContext. Tenant and role come from the token only.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, i18n.T(lang, i18n.KeyAuthRequired), nil)
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, i18n.T(lang, i18n.KeyAuthInvalidToken), nil)
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, i18n.T(lang, i18n.KeyAuthInvalidToken), nil)
			return
		}

		tc, err := licensing.NewTenantContext(claims.TenantID, claims.UserID, claims.Role)
		if err != nil {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, i18n.T(lang, i18n.KeyAuthInvalidClaim), nil)
			return
		}

		c.Set(TenantContextKey, tc)
		c.Set("user_id", tc.UserID)
		c.Set("tenant_id", tc.TenantID.String())
		c.Set("role", string(tc.Role))
		c.Next()
	}
}

// GetTenantContext returns the identity stored by AuthRequired.
func GetTenantContext(c *gin.Context) (licensing.TenantContext, bool) {
	v, exists := c.Get(TenantContextKey)
	if !exists {
		return licensing.TenantContext{}, false
	}
	tc, ok := v.(licensing.TenantContext)
	return tc, ok
}
