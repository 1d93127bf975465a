// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/permitwatch/permitwatch-backend/internal/clock"
	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/handlers"
	"github.com/permitwatch/permitwatch-backend/internal/middleware"
	"github.com/permitwatch/permitwatch-backend/internal/services"
	"github.com/permitwatch/permitwatch-backend/internal/utils"
)

// Initialize wires services, handlers, and routes. It also returns the
// reminder runner so the cron scheduler can drive the same instance the
// HTTP trigger endpoints use.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, services.ReminderRunner) {
	loc := cfg.ReminderLocation()

	// Initialize services
	storageService, _ := services.NewStorageService(cfg)
	reminderService := services.NewReminderService(db)
	licenseService := services.NewLicenseService(db, reminderService, clock.System(), loc)
	documentService := services.NewDocumentService(db, storageService, licenseService)
	authService := services.NewAuthService(db, cfg)
	businessService := services.NewBusinessService(db)
	billingService := services.NewBillingService(db, cfg, businessService)

	dispatchers := []services.Dispatcher{
		services.NewEmailDispatcher(cfg.Email, cfg.Reminder.MaxRetries),
		services.NewSMSDispatcher(cfg.SMS, cfg.Reminder.MaxRetries),
	}
	runner := services.NewReminderEngine(
		licenseService,
		reminderService,
		dispatchers,
		clock.System(),
		loc,
		cfg.Reminder.DigestHorizon,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	businessHandler := handlers.NewBusinessHandler(businessService, billingService)
	licenseHandler := handlers.NewLicenseHandler(licenseService, reminderService, cfg)
	documentHandler := handlers.NewDocumentHandler(documentService)
	reminderHandler := handlers.NewReminderHandler(runner, cfg)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Business routes
		businesses := v1.Group("/businesses")
		businesses.Use(middleware.AuthRequired())
		{
			businesses.POST("", businessHandler.Create)
			businesses.GET("", businessHandler.List)
			businesses.GET("/:id", businessHandler.Get)
			businesses.PUT("/:id", businessHandler.Update)
			businesses.DELETE("/:id", businessHandler.Delete)

			businesses.GET("/:id/members", businessHandler.ListMembers)
			businesses.POST("/:id/members", businessHandler.AddMember)
			businesses.DELETE("/:id/members/:memberId", businessHandler.RemoveMember)

			businesses.GET("/:id/licenses", licenseHandler.ListForBusiness)

			businesses.POST("/:id/billing/checkout", businessHandler.CreateCheckout)
			businesses.GET("/:id/billing/subscription", businessHandler.GetSubscription)
			businesses.POST("/:id/billing/attach", businessHandler.AttachSubscription)
		}

		// License routes
		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired())
		{
			licenses.POST("", licenseHandler.Create)
			licenses.GET("/:id", licenseHandler.Get)
			licenses.PUT("/:id", licenseHandler.Update)
			licenses.DELETE("/:id", licenseHandler.Delete)
			licenses.GET("/:id/reminders", licenseHandler.ListReminders)

			licenses.GET("/:id/documents", documentHandler.List)
			licenses.POST("/:id/documents", middleware.UploadRateLimit(), documentHandler.Upload)
		}

		// Document routes
		documents := v1.Group("/documents")
		documents.Use(middleware.AuthRequired())
		{
			documents.DELETE("/:id", documentHandler.Delete)
		}

		// Reminder routes
		reminders := v1.Group("/reminders")
		reminders.Use(middleware.AuthRequired())
		{
			reminders.POST("/run", reminderHandler.ManualRun)
		}

		// External cron trigger routes (shared secret, not user auth)
		cron := v1.Group("/cron")
		cron.Use(middleware.CronRateLimit(), reminderHandler.CronAuth())
		{
			cron.POST("/reminders", reminderHandler.CronRun)
			cron.POST("/backfill", reminderHandler.CronBackfill)
			cron.POST("/digest", reminderHandler.CronDigest)
		}
	}

	return r, runner
}
