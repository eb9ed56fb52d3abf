// internal/handlers/webhook.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rankbeam/license-api/internal/services"
	"github.com/rankbeam/license-api/internal/utils"
)

type WebhookHandler struct {
	licenseService *services.LicenseService
}

func NewWebhookHandler(licenseService *services.LicenseService) *WebhookHandler {
	return &WebhookHandler{
		licenseService: licenseService,
	}
}

// POST /paystack/webhook
//
// TrustGate has already authenticated the caller. The flow here is linear:
// parse, classify, transition, respond. Unsupported or incomplete events are
// acknowledged with 202 so the gateway stops retrying them.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	var event services.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		utils.BadRequestResponse(c, "Invalid JSON payload", err.Error())
		return
	}

	if !event.Supported() {
		logrus.WithField("event", event.Event).Info("Ignoring unsupported webhook event")
		utils.AcceptedResponse(c, gin.H{
			"status": "ignored",
			"reason": "unsupported event",
		})
		return
	}

	licenseKey := event.LicenseKey()
	email := event.Email()
	if licenseKey == "" || email == "" {
		logrus.WithField("event", event.Event).Warn("Webhook event missing license key or email")
		utils.AcceptedResponse(c, gin.H{
			"status": "ignored",
		})
		return
	}

	paidAt := event.PaidTime(time.Now().UTC())
	expiresAt, err := h.licenseService.Activate(c.Request.Context(),
		email, licenseKey, event.Fingerprint(), paidAt, event.Reference())
	if err != nil {
		logrus.WithError(err).WithField("license_key", licenseKey).Error("Webhook activation failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	logrus.WithFields(logrus.Fields{
		"event":       event.Event,
		"license_key": licenseKey,
		"expires_at":  expiresAt.Format(time.RFC3339),
	}).Info("License activated from webhook event")

	utils.SuccessResponse(c, gin.H{
		"status":     "processed",
		"licenseKey": licenseKey,
		"expiresAt":  expiresAt.Format(time.RFC3339),
	})
}
