// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/license-authority/internal/i18n"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/middleware"
	"github.com/javajoker/license-authority/internal/services"
	"github.com/javajoker/license-authority/internal/utils"
)

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	switch {
	case errors.Is(err, licensing.ErrValidation):
		utils.ValidationErrorResponse(c, err.Error(), nil)
	case errors.Is(err, licensing.ErrSpoofingRejected):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeSpoofingRejected, i18n.T(lang, i18n.KeySpoofingRejected), err.Error())
	case errors.Is(err, licensing.ErrForbidden):
		utils.ForbiddenResponse(c, "")
	case errors.Is(err, licensing.ErrLicenseNotFound):
		utils.NotFoundResponse(c, i18n.KeyLicenseNotFound)
	case errors.Is(err, licensing.ErrIllegalTransition):
		utils.ErrorResponse(c, http.StatusConflict, utils.CodeIllegalTransition, i18n.T(lang, i18n.KeyLicenseIllegal), err.Error())
	case errors.Is(err, licensing.ErrVersionConflict):
		utils.ConflictResponse(c, utils.CodeVersionConflict, i18n.T(lang, i18n.KeyLicenseConflict))
	case errors.Is(err, services.ErrProcessorUnavailable):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, utils.CodeProcessorUnavailable, i18n.T(lang, i18n.KeyProcessorUnavailable), nil)
	default:
		requestID, _ := c.Get("request_id")
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       c.Request.URL.Path,
		}).WithError(err).Error("Request failed")
		utils.InternalErrorResponse(c, "")
	}
}

// licenseParams reads the caller identity and the :id path parameter. It
// writes the error response itself when either is missing or malformed.
func licenseParams(c *gin.Context) (licensing.TenantContext, uuid.UUID, bool) {
	tc, ok := middleware.GetTenantContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return licensing.TenantContext{}, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "license id"), nil)
		return licensing.TenantContext{}, uuid.Nil, false
	}
	return tc, id, true
}
