package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nutriagg/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		nutrition := v1.Group("/nutrition")
		{
			nutrition.GET("/barcode/:code", handler.LookupBarcode)
			nutrition.GET("/search", handler.SearchFood)
			nutrition.GET("/search/brand", handler.SearchByBrand)
			nutrition.GET("/search/category", handler.SearchByCategory)
			nutrition.POST("/bulk", handler.BulkLookup)
		}

		stats := v1.Group("/stats")
		{
			stats.GET("/usage", handler.UsageStats)
			stats.GET("/cache", handler.CacheStats)
		}

		v1.DELETE("/cache", handler.ClearCache)
		v1.GET("/providers", handler.Providers)
	}

	return router
}
