// internal/handlers/license.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/license-authority/internal/services"
	"github.com/javajoker/license-authority/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// GET /v1/licenses/:id/access
// Denials are verdicts and come back as 200 with allowed=false.
func (h *LicenseHandler) CheckAccess(c *gin.Context) {
	tc, licenseID, ok := licenseParams(c)
	if !ok {
		return
	}

	verdict, err := h.licenseService.CheckAccessFor(c.Request.Context(), tc, licenseID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license_id": licenseID,
		"verdict":    verdict,
	})
}

// GET /v1/licenses/:id
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	tc, licenseID, ok := licenseParams(c)
	if !ok {
		return
	}

	license, verdict, err := h.licenseService.GetLicense(c.Request.Context(), tc, licenseID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license": license,
		"verdict": verdict,
	})
}
