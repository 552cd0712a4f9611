package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stack-service/tax_service/internal/api/handlers"
	"github.com/stack-service/tax_service/internal/api/middleware"
	"github.com/stack-service/tax_service/internal/infrastructure/di"
	"github.com/stack-service/tax_service/pkg/tracing"
	"github.com/stack-service/tax_service/pkg/version"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(container.HealthChecker, version.Version, container.Logger)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)
	router.GET("/version", healthHandler.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	taxHandlers := handlers.NewTaxHandlers(
		container.HarvestingService,
		container.JurisdictionService,
		container.ScopeLock,
		container.Logger,
	)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiter))
	{
		tax := v1.Group("/tax")
		{
			suggestions := tax.Group("/harvesting/suggestions")
			suggestions.POST("/generate", taxHandlers.GenerateSuggestions)
			suggestions.GET("", taxHandlers.ListSuggestions)
			suggestions.PATCH("/:id", taxHandlers.UpdateSuggestionStatus)

			tax.POST("/optimization", taxHandlers.Optimize)
		}
	}

	return router
}
