// internal/middleware/cors.go
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the marketing frontend to call subscribe from any origin. The
// sensitive endpoints are guarded by their own gates, not by origin checks.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"X-License-Token", "X-Installer-Token", "X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	})
}
