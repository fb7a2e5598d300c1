// internal/middleware/spoofing.go
package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/license-authority/internal/i18n"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/metrics"
	"github.com/javajoker/license-authority/internal/utils"
)

// Admin request bodies are small JSON documents.
const maxAdminBody = 1 << 20

// AntiSpoofing rejects admin requests that try to name a tenant, actor or
// role themselves, whether in headers, query string or JSON body.
func AntiSpoofing() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := licensing.ScanHeaders(c.Request.Header); err != nil {
			rejectSpoofing(c, err)
			return
		}
		if err := licensing.ScanQuery(c.Request.URL.Query()); err != nil {
			rejectSpoofing(c, err)
			return
		}

		if c.Request.Body != nil {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAdminBody+1))
			if err != nil {
				utils.AbortWithError(c, http.StatusBadRequest, utils.CodeBadRequest, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "body"), nil)
				return
			}
			if len(body) > maxAdminBody {
				utils.AbortWithError(c, http.StatusRequestEntityTooLarge, utils.CodeBadRequest, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "body"), nil)
				return
			}
			if err := licensing.ScanJSON(body); err != nil {
				rejectSpoofing(c, err)
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		c.Next()
	}
}

func rejectSpoofing(c *gin.Context, err error) {
	metrics.SpoofingRejections.Inc()

	fields := logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"ip":     c.ClientIP(),
	}
	if tc, ok := GetTenantContext(c); ok {
		fields["tenant_id"] = tc.TenantID
		fields["actor_id"] = tc.UserID
		fields["actor_role"] = tc.Role
	}
	logrus.WithFields(fields).WithError(err).Warn("Spoofing attempt rejected")

	utils.AbortWithError(c, http.StatusBadRequest, utils.CodeSpoofingRejected,
		i18n.T(utils.GetLangFromContext(c), i18n.KeySpoofingRejected), err.Error())
}
