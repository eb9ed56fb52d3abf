// internal/middleware/trustgate_test.go
package middleware

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/rankbeam/license-api/internal/config"
)

func newGateRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", TrustGate(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "reached"})
	})
	return r
}

func signBody(secret, body string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestTrustGateSignatureMode(t *testing.T) {
	cfg := &config.Config{
		Paystack: config.PaystackConfig{WebhookSecret: "whsec"},
	}
	r := newGateRouter(cfg)
	body := `{"event":"charge.success"}`

	t.Run("valid signature passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set(paystackSignatureHeader, signBody("whsec", body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong signature rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set(paystackSignatureHeader, signBody("other-secret", body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("signature over different body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"event":"tampered"}`))
		req.Header.Set(paystackSignatureHeader, signBody("whsec", body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestTrustGateAllowlistMode(t *testing.T) {
	cfg := &config.Config{
		Paystack: config.PaystackConfig{
			TrustedIPs: []string{"52.31.139.75"},
		},
	}
	r := newGateRouter(cfg)

	t.Run("allowlisted source passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
		req.RemoteAddr = "52.31.139.75:34567"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
		req.RemoteAddr = "203.0.113.9:34567"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("forwarded address honored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-For", "52.31.139.75")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("forged header from a direct public caller rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
		req.RemoteAddr = "203.0.113.9:34567"
		req.Header.Set("X-Forwarded-For", "52.31.139.75")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code,
			"a public peer claiming an allowlisted origin must not pass")
	})

	t.Run("only the proxy-appended hop counts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-For", "52.31.139.75, 203.0.113.9")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, "spoofed first hop must not be trusted")
	})

	t.Run("loopback rejected by default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
		req.RemoteAddr = "127.0.0.1:50000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestTrustGateLoopbackFlag(t *testing.T) {
	cfg := &config.Config{
		Paystack: config.PaystackConfig{
			TrustedIPs:    []string{"52.31.139.75"},
			TrustLoopback: true,
		},
	}
	r := newGateRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	req.RemoteAddr = "127.0.0.1:50000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
