// internal/handlers/license.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rankbeam/license-api/internal/services"
	"github.com/rankbeam/license-api/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

type SubscribeRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Fingerprint string `json:"fingerprint" validate:"required"`
	PlanCode    string `json:"planCode,omitempty"`
}

type ValidateRequest struct {
	Email       string `json:"email" validate:"required,email"`
	LicenseKey  string `json:"licenseKey" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required"`
}

type DeactivateRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required"`
}

// POST /paystack/subscribe
func (h *LicenseHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid JSON payload", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.licenseService.Subscribe(c.Request.Context(), req.Email, req.Fingerprint, req.PlanCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlanNotConfigured):
			utils.InternalErrorResponse(c, err.Error())
		case errors.Is(err, services.ErrGatewayUnavailable):
			logrus.WithError(err).Error("Subscription checkout failed upstream")
			utils.BadGatewayResponse(c, "Unable to start subscription")
		default:
			logrus.WithError(err).Error("Subscription failed")
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"status":           "pending",
		"licenseKey":       result.LicenseKey,
		"reference":        result.Reference,
		"authorizationUrl": result.AuthorizationURL,
		"accessCode":       result.AccessCode,
	})
}

// POST /paystack/validate
func (h *LicenseHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid JSON payload", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	license, err := h.licenseService.Validate(c.Request.Context(), req.Email, req.LicenseKey, req.Fingerprint)
	if err != nil {
		h.rejectValidation(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"status":     "valid",
		"licenseKey": license.LicenseKey,
		"expiresAt":  license.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// rejectValidation maps each domain rejection to its distinct
// machine-readable reason. These are expected outcomes, not failures.
func (h *LicenseHandler) rejectValidation(c *gin.Context, err error) {
	var expired *services.LicenseExpiredError
	switch {
	case errors.Is(err, services.ErrLicenseNotFound):
		utils.UnauthorizedResponse(c, "LICENSE_NOT_FOUND", "license not found")
	case errors.Is(err, services.ErrEmailMismatch):
		utils.UnauthorizedResponse(c, "EMAIL_MISMATCH", "email mismatch")
	case errors.As(err, &expired):
		utils.ErrorResponse(c, http.StatusUnauthorized, "SUBSCRIPTION_EXPIRED", "subscription expired",
			gin.H{"expiresAt": expired.ExpiresAt.UTC().Format(time.RFC3339)})
	case errors.Is(err, services.ErrPaymentPending):
		utils.ConflictResponse(c, "PAYMENT_PENDING", "payment pending")
	case errors.Is(err, services.ErrLicenseDeactivated):
		utils.UnauthorizedResponse(c, "LICENSE_DEACTIVATED", "license deactivated")
	case errors.Is(err, services.ErrLicenseInactive):
		utils.UnauthorizedResponse(c, "SUBSCRIPTION_INACTIVE", "subscription inactive")
	case errors.Is(err, services.ErrFingerprintMismatch):
		utils.UnauthorizedResponse(c, "FINGERPRINT_MISMATCH", "fingerprint mismatch")
	default:
		logrus.WithError(err).Error("License validation failed")
		utils.InternalErrorResponse(c, "")
	}
}

// POST /paystack/deactivate
func (h *LicenseHandler) Deactivate(c *gin.Context) {
	var req DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid JSON payload", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.licenseService.Deactivate(c.Request.Context(), req.LicenseKey); err != nil {
		logrus.WithError(err).Error("License deactivation failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"status": "deactivated",
	})
}
