// internal/handlers/webhook.go
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/javajoker/license-authority/internal/config"
	"github.com/javajoker/license-authority/internal/i18n"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/metrics"
	"github.com/javajoker/license-authority/internal/services"
	"github.com/javajoker/license-authority/internal/utils"
)

const webhookBodyLimit = 64 << 10

type WebhookHandler struct {
	webhookService *services.WebhookService
	secret         string
	tolerance      time.Duration
}

func NewWebhookHandler(webhookService *services.WebhookService, cfg config.StripeConfig) *WebhookHandler {
	tolerance := time.Duration(cfg.WebhookTolerance) * time.Second
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookHandler{
		webhookService: webhookService,
		secret:         cfg.WebhookSecret,
		tolerance:      tolerance,
	}
}

// POST /v1/webhooks/stripe
// Verified events always get a 2xx, whatever their outcome, so the processor
// stops redelivering. Only store failures return 500.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	if strings.TrimSpace(h.secret) == "" {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, utils.CodeProcessorUnavailable, i18n.T(lang, i18n.KeyProcessorUnavailable), nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookPayload), nil)
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		h.rejectSignature(c, errors.New("missing Stripe-Signature header"))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		Tolerance:                h.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.rejectSignature(c, err)
		return
	}

	ev, err := services.NormalizeStripeEvent(event)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "malformed").Inc()
		logrus.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).WithError(err).Warn("Webhook payload could not be normalized")
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeValidation, i18n.T(lang, i18n.KeyWebhookPayload), err.Error())
		return
	}

	result, err := h.webhookService.IngestWebhookEvent(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, licensing.ErrValidation) {
			utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeValidation, i18n.T(lang, i18n.KeyWebhookPayload), err.Error())
			return
		}
		// Nothing was recorded, so the redelivery is processed normally.
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"received": true,
		"event_id": ev.ID,
		"result":   result,
	})
}

func (h *WebhookHandler) rejectSignature(c *gin.Context, err error) {
	metrics.WebhookEvents.WithLabelValues("unverified", "invalid_signature").Inc()
	logrus.WithFields(logrus.Fields{
		"ip": c.ClientIP(),
	}).WithError(err).Warn("Webhook signature verification failed")

	utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidSignature,
		i18n.T(utils.GetLangFromContext(c), i18n.KeyWebhookSignature), nil)
}
