// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rankbeam/license-api/internal/config"
	"github.com/rankbeam/license-api/internal/handlers"
	"github.com/rankbeam/license-api/internal/middleware"
	"github.com/rankbeam/license-api/internal/services"
	"github.com/rankbeam/license-api/internal/store"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize store and services
	licenseStore := store.NewGormStore(db)
	paystackService := services.NewPaystackService(cfg)
	licenseService := services.NewLicenseService(licenseStore, paystackService, cfg)

	// Initialize handlers
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	webhookHandler := handlers.NewWebhookHandler(licenseService)
	healthHandler := handlers.NewHealthHandler(licenseStore)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health checks
	r.GET("/health", healthHandler.Check)
	r.HEAD("/health", healthHandler.Check)
	r.GET("/healthz", healthHandler.Check)

	paystack := r.Group("/paystack")
	{
		paystack.POST("/subscribe", middleware.SubscribeRateLimit(), licenseHandler.Subscribe)
		paystack.POST("/webhook", middleware.TrustGate(cfg), webhookHandler.HandleEvent)

		// Installed-application endpoints
		gated := paystack.Group("")
		gated.Use(middleware.ValidationGate(cfg))
		{
			gated.POST("/validate", middleware.ValidateRateLimit(), licenseHandler.Validate)
			gated.POST("/deactivate", licenseHandler.Deactivate)
		}
	}

	return r
}
