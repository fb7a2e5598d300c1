// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/javajoker/license-authority/internal/config"
	"github.com/javajoker/license-authority/internal/handlers"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/middleware"
	"github.com/javajoker/license-authority/internal/services"
	"github.com/javajoker/license-authority/internal/store"
	"github.com/javajoker/license-authority/internal/utils"
)

// Initialize builds the engine. The returned stop function releases
// background workers and must be called on shutdown.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, func(), error) {
	// Initialize services
	st := store.NewGormStore(db)
	processor := services.NewStripeProcessor(cfg.Stripe)

	licenseService := services.NewLicenseService(st, processor, cfg.Licensing)
	webhookService := services.NewWebhookService(st, cfg.Licensing)
	archiveService, err := services.NewAuditArchiveService(st, cfg.AWS)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit archive: %w", err)
	}

	// Initialize handlers
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	adminHandler := handlers.NewAdminHandler(licenseService, archiveService)
	webhookHandler := handlers.NewWebhookHandler(webhookService, cfg.Stripe)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	adminLimiter := middleware.NewRateLimiter(cfg.RateLimit.AdminRPS, cfg.RateLimit.AdminBurst)
	webhookLimiter := middleware.NewRateLimiter(cfg.RateLimit.WebhookRPS, cfg.RateLimit.WebhookBurst)
	stop := func() {
		adminLimiter.Stop()
		webhookLimiter.Stop()
	}

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"tier_catalog": licensing.TierCatalogVersion,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// License reads
		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired())
		{
			licenses.GET("/:id", licenseHandler.GetLicense)
			licenses.GET("/:id/access", licenseHandler.CheckAccess)
		}

		// Admin lifecycle routes; the role gate runs in the service
		admin := v1.Group("/admin/licenses")
		admin.Use(adminLimiter.Middleware(), middleware.AuthRequired(), middleware.AntiSpoofing())
		{
			admin.POST("/:id/suspend", adminHandler.SuspendLicense)
			admin.POST("/:id/reactivate", adminHandler.ReactivateLicense)
			admin.POST("/:id/revoke", adminHandler.RevokeLicense)
			admin.PUT("/:id/features", adminHandler.UpdateFeatures)
			admin.PUT("/:id/limits", adminHandler.UpdateLimits)
			admin.POST("/:id/resync", adminHandler.ResyncLicense)
			admin.GET("/:id/audit", adminHandler.GetAuditTrail)
			admin.POST("/:id/audit/export", adminHandler.ExportAuditTrail)
		}

		// Processor webhooks, authenticated by signature
		webhooks := v1.Group("/webhooks")
		webhooks.Use(webhookLimiter.Middleware())
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripe)
		}
	}

	return r, stop, nil
}
