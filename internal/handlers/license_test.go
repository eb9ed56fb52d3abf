// internal/handlers/license_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rankbeam/license-api/internal/config"
	"github.com/rankbeam/license-api/internal/middleware"
	"github.com/rankbeam/license-api/internal/models"
	"github.com/rankbeam/license-api/internal/services"
	"github.com/rankbeam/license-api/internal/store"
)

const testValidationToken = "installer-token"

func newLicenseFixture(t *testing.T) (*gin.Engine, store.LicenseStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.License{}))

	cfg := &config.Config{
		Environment: "test",
		Paystack: config.PaystackConfig{
			PlanCode: "PLN_TEST",
		},
		License: config.LicenseConfig{
			ValidationToken: testValidationToken,
			ValidityDays:    30,
		},
	}

	licenseStore := store.NewGormStore(db)
	licenseService := services.NewLicenseService(licenseStore, stubGateway{}, cfg)
	handler := NewLicenseHandler(licenseService)

	r := gin.New()
	r.POST("/paystack/subscribe", handler.Subscribe)
	gated := r.Group("/paystack", middleware.ValidationGate(cfg))
	gated.POST("/validate", handler.Validate)
	gated.POST("/deactivate", handler.Deactivate)
	return r, licenseStore
}

func postJSON(r *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func tokenHeader() map[string]string {
	return map[string]string{"X-License-Token": testValidationToken}
}

func TestSubscribeReturnsPendingCheckout(t *testing.T) {
	r, licenseStore := newLicenseFixture(t)

	w := postJSON(r, "/paystack/subscribe", `{"email": "a@b.com", "fingerprint": "D1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	key, _ := data["licenseKey"].(string)
	require.NotEmpty(t, key)
	assert.Contains(t, data["authorizationUrl"], "https://")

	license, err := licenseStore.GetByKey(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusPending, license.Status)
	assert.Equal(t, "D1", license.Fingerprint)
}

func TestSubscribeRejectsMalformedRequest(t *testing.T) {
	r, _ := newLicenseFixture(t)

	w := postJSON(r, "/paystack/subscribe", `{"email": "not-an-email", "fingerprint": "D1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/paystack/subscribe", `{"email": "a@b.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateRequiresToken(t *testing.T) {
	r, _ := newLicenseFixture(t)

	body := `{"email": "a@b.com", "licenseKey": "KEY-1", "fingerprint": "D1"}`
	w := postJSON(r, "/paystack/validate", body, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postJSON(r, "/paystack/validate", body, map[string]string{"X-License-Token": "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestValidateAcceptsActiveLicense(t *testing.T) {
	r, licenseStore := newLicenseFixture(t)
	ctx := context.Background()

	expiresAt := time.Now().UTC().Add(720 * time.Hour).Truncate(time.Second)
	require.NoError(t, licenseStore.UpsertActive(ctx, "a@b.com", "KEY-1", "D1", expiresAt, "RB-1"))

	body := `{"email": "a@b.com", "licenseKey": "KEY-1", "fingerprint": "D1"}`
	w := postJSON(r, "/paystack/validate", body, tokenHeader())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "valid", data["status"])
	assert.Equal(t, "KEY-1", data["licenseKey"])
	assert.Equal(t, expiresAt.Format(time.RFC3339), data["expiresAt"])
}

func TestValidateRejectionCodes(t *testing.T) {
	r, licenseStore := newLicenseFixture(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(720 * time.Hour)
	require.NoError(t, licenseStore.UpsertActive(ctx, "a@b.com", "KEY-1", "D1", future, "RB-1"))
	require.NoError(t, licenseStore.UpsertPending(ctx, "p@b.com", "KEY-PENDING", "D1", "RB-2"))

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown key", `{"email": "a@b.com", "licenseKey": "KEY-MISSING", "fingerprint": "D1"}`,
			http.StatusUnauthorized, "LICENSE_NOT_FOUND"},
		{"wrong email", `{"email": "x@b.com", "licenseKey": "KEY-1", "fingerprint": "D1"}`,
			http.StatusUnauthorized, "EMAIL_MISMATCH"},
		{"wrong device", `{"email": "a@b.com", "licenseKey": "KEY-1", "fingerprint": "D2"}`,
			http.StatusUnauthorized, "FINGERPRINT_MISMATCH"},
		{"unpaid", `{"email": "p@b.com", "licenseKey": "KEY-PENDING", "fingerprint": "D1"}`,
			http.StatusConflict, "PAYMENT_PENDING"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(r, "/paystack/validate", tc.body, tokenHeader())
			assert.Equal(t, tc.status, w.Code)
			resp := decodeBody(t, w)
			errObj := resp["error"].(map[string]interface{})
			assert.Equal(t, tc.code, errObj["code"])
		})
	}
}

func TestValidateExpiredReportsExpiry(t *testing.T) {
	r, licenseStore := newLicenseFixture(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, licenseStore.UpsertActive(ctx, "a@b.com", "KEY-1", "D1", past, "RB-1"))

	body := `{"email": "a@b.com", "licenseKey": "KEY-1", "fingerprint": "D1"}`
	w := postJSON(r, "/paystack/validate", body, tokenHeader())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	resp := decodeBody(t, w)
	errObj := resp["error"].(map[string]interface{})
	assert.Equal(t, "SUBSCRIPTION_EXPIRED", errObj["code"])
	details := errObj["details"].(map[string]interface{})
	assert.Equal(t, past.Format(time.RFC3339), details["expiresAt"])
}

func TestDeactivateClearsBindingAndBlocksValidation(t *testing.T) {
	r, licenseStore := newLicenseFixture(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(720 * time.Hour)
	require.NoError(t, licenseStore.UpsertActive(ctx, "a@b.com", "KEY-1", "D1", future, "RB-1"))

	w := postJSON(r, "/paystack/deactivate", `{"licenseKey": "KEY-1"}`, tokenHeader())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "deactivated", data["status"])

	license, err := licenseStore.GetByKey(ctx, "KEY-1")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusDeactivated, license.Status)
	assert.Empty(t, license.Fingerprint)

	body := `{"email": "a@b.com", "licenseKey": "KEY-1", "fingerprint": "D1"}`
	vw := postJSON(r, "/paystack/validate", body, tokenHeader())
	assert.Equal(t, http.StatusUnauthorized, vw.Code)
	errObj := decodeBody(t, vw)["error"].(map[string]interface{})
	assert.Equal(t, "LICENSE_DEACTIVATED", errObj["code"])
}

func TestDeactivateUnknownKeyIsQuiet(t *testing.T) {
	// Deactivation is idempotent and does not leak key existence.
	r, _ := newLicenseFixture(t)

	w := postJSON(r, "/paystack/deactivate", `{"licenseKey": "KEY-GHOST"}`, tokenHeader())
	assert.Equal(t, http.StatusOK, w.Code)
}
