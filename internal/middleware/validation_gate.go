// internal/middleware/validation_gate.go
package middleware

import (
	"crypto/subtle"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rankbeam/license-api/internal/config"
	"github.com/rankbeam/license-api/internal/utils"
)

// ValidationGate protects the validate/deactivate endpoints from arbitrary
// callers. Access requires the configured shared token in X-License-Token
// (or the legacy X-Installer-Token), or loopback origin when the local
// bypass is enabled. An empty configured token admits everyone; Config
// validation forbids that in production.
func ValidationGate(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := cfg.License.ValidationToken
		if token == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-License-Token")
		if provided == "" {
			provided = c.GetHeader("X-Installer-Token")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1 {
			c.Next()
			return
		}

		if cfg.License.AllowLocalValidation && isLoopbackCaller(c) {
			c.Next()
			return
		}

		logrus.WithFields(logrus.Fields{
			"ip":   callerAddress(c),
			"path": c.Request.URL.Path,
		}).Warn("Request rejected by validation gate")
		utils.ForbiddenResponse(c)
		c.Abort()
	}
}

func isLoopbackCaller(c *gin.Context) bool {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		host = c.Request.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
