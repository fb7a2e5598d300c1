// internal/handlers/admin.go
package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/license-authority/internal/i18n"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/models"
	"github.com/javajoker/license-authority/internal/services"
	"github.com/javajoker/license-authority/internal/utils"
)

type AdminHandler struct {
	licenseService *services.LicenseService
	archiveService *services.AuditArchiveService
}

func NewAdminHandler(licenseService *services.LicenseService, archiveService *services.AuditArchiveService) *AdminHandler {
	return &AdminHandler{
		licenseService: licenseService,
		archiveService: archiveService,
	}
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type FeaturesRequest struct {
	Features map[string]bool `json:"features" validate:"required,dive,keys,feature_key,endkeys"`
}

type LimitsRequest struct {
	MaxUsers    *int `json:"max_users" validate:"omitempty,min=0"`
	MaxStudents *int `json:"max_students" validate:"omitempty,min=0"`
	MaxPrograms *int `json:"max_programs" validate:"omitempty,min=0"`
}

// POST /v1/admin/licenses/:id/suspend
func (h *AdminHandler) SuspendLicense(c *gin.Context) {
	h.transition(c, models.AuditActionSuspend)
}

// POST /v1/admin/licenses/:id/reactivate
func (h *AdminHandler) ReactivateLicense(c *gin.Context) {
	h.transition(c, models.AuditActionReactivate)
}

// POST /v1/admin/licenses/:id/revoke
func (h *AdminHandler) RevokeLicense(c *gin.Context) {
	h.transition(c, models.AuditActionRevoke)
}

func (h *AdminHandler) transition(c *gin.Context, action models.AuditAction) {
	var req ReasonRequest
	if !bindRequest(c, &req, true) {
		return
	}

	h.runAction(c, action, licensing.ActionParams{Reason: req.Reason})
}

// PUT /v1/admin/licenses/:id/features
func (h *AdminHandler) UpdateFeatures(c *gin.Context) {
	var req FeaturesRequest
	if !bindRequest(c, &req, false) {
		return
	}

	h.runAction(c, models.AuditActionUpdateFeatures, licensing.ActionParams{
		Features: models.FeatureSet(req.Features),
	})
}

// PUT /v1/admin/licenses/:id/limits
func (h *AdminHandler) UpdateLimits(c *gin.Context) {
	var req LimitsRequest
	if !bindRequest(c, &req, false) {
		return
	}

	h.runAction(c, models.AuditActionUpdateLimits, licensing.ActionParams{
		Limits: &models.Limits{
			MaxUsers:    req.MaxUsers,
			MaxStudents: req.MaxStudents,
			MaxPrograms: req.MaxPrograms,
		},
	})
}

func (h *AdminHandler) runAction(c *gin.Context, action models.AuditAction, params licensing.ActionParams) {
	tc, licenseID, ok := licenseParams(c)
	if !ok {
		return
	}

	result, err := h.licenseService.AdminAction(c.Request.Context(), tc, licenseID, action, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyLicenseActionApplied),
		"result":  result,
	})
}

// POST /v1/admin/licenses/:id/resync
func (h *AdminHandler) ResyncLicense(c *gin.Context) {
	tc, licenseID, ok := licenseParams(c)
	if !ok {
		return
	}

	result, err := h.licenseService.Resync(c.Request.Context(), tc, licenseID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"result": result,
	})
}

// GET /v1/admin/licenses/:id/audit
func (h *AdminHandler) GetAuditTrail(c *gin.Context) {
	tc, licenseID, ok := licenseParams(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	if params.Action != "" {
		if _, err := licensing.ParseAdminAction(params.Action); err != nil && params.Action != string(models.AuditActionWebhookSync) {
			respondError(c, err)
			return
		}
	}

	records, total, err := h.licenseService.ListAudit(c.Request.Context(), tc, licenseID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(records, total, params))
}

// POST /v1/admin/licenses/:id/audit/export
func (h *AdminHandler) ExportAuditTrail(c *gin.Context) {
	tc, licenseID, ok := licenseParams(c)
	if !ok {
		return
	}

	result, err := h.archiveService.Export(c.Request.Context(), tc, licenseID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"archive": result,
	})
}

// bindRequest decodes and validates a JSON body. When optional is set an
// empty body is accepted as the zero request.
func bindRequest(c *gin.Context, req interface{}, optional bool) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
			return false
		}
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, "", validationErrors)
		return false
	}
	return true
}
