package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nutriagg/backend/internal/domain"
)

// maxBulkBarcodes caps one bulk request.
const maxBulkBarcodes = 50

// NutritionService is the slice of the aggregator the handlers need.
type NutritionService interface {
	LookupBarcode(ctx context.Context, code string) domain.LookupResult
	SearchFood(ctx context.Context, query string) domain.SearchResult
	SearchByBrand(ctx context.Context, brand string) domain.SearchResult
	SearchByCategory(ctx context.Context, category string) domain.SearchResult
	GetBulkProducts(ctx context.Context, codes []string) domain.BulkResult
	GetUsageStats() map[string]domain.ProviderUsage
	GetCacheStats() domain.CacheStats
	ClearCache()
	GetAvailableProviders() []string
	DescribeProviders() []domain.Descriptor
	GetBestAvailableAPI() string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service NutritionService
	log     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service NutritionService, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "nutriagg-backend",
		"version":   "1.0.0",
		"providers": h.service.GetAvailableProviders(),
	})
}

// LookupBarcode resolves one product barcode
func (h *Handler) LookupBarcode(c *gin.Context) {
	result := h.service.LookupBarcode(c.Request.Context(), c.Param("code"))
	c.JSON(lookupStatus(result), result)
}

// SearchFood searches all providers for a free-text query
func (h *Handler) SearchFood(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	result := h.service.SearchFood(c.Request.Context(), query)
	c.JSON(searchStatus(result), result)
}

// SearchByBrand searches providers that support brand filtering
func (h *Handler) SearchByBrand(c *gin.Context) {
	brand := c.Query("brand")
	if strings.TrimSpace(brand) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'brand' is required"})
		return
	}
	result := h.service.SearchByBrand(c.Request.Context(), brand)
	c.JSON(searchStatus(result), result)
}

// SearchByCategory searches providers that support category filtering
func (h *Handler) SearchByCategory(c *gin.Context) {
	category := c.Query("category")
	if strings.TrimSpace(category) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'category' is required"})
		return
	}
	result := h.service.SearchByCategory(c.Request.Context(), category)
	c.JSON(searchStatus(result), result)
}

type bulkRequest struct {
	Barcodes []string `json:"barcodes" binding:"required"`
}

// BulkLookup resolves a batch of barcodes in one request
func (h *Handler) BulkLookup(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must contain a 'barcodes' array"})
		return
	}
	if len(req.Barcodes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'barcodes' must not be empty"})
		return
	}
	if len(req.Barcodes) > maxBulkBarcodes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many barcodes in one request"})
		return
	}

	result := h.service.GetBulkProducts(c.Request.Context(), req.Barcodes)
	c.JSON(http.StatusOK, result)
}

// UsageStats reports per-provider quota standing
func (h *Handler) UsageStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers":     h.service.GetUsageStats(),
		"bestAvailable": h.service.GetBestAvailableAPI(),
	})
}

// CacheStats reports cache size and hit accounting
func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetCacheStats())
}

// ClearCache drops all cached lookups
func (h *Handler) ClearCache(c *gin.Context) {
	h.service.ClearCache()
	h.log.Info("cache cleared via API")
	c.JSON(http.StatusOK, gin.H{"status": "cache cleared"})
}

// Providers lists every configured provider and its capabilities
func (h *Handler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.service.DescribeProviders()})
}

// lookupStatus maps a lookup envelope to an HTTP status.
func lookupStatus(result domain.LookupResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Error {
	case domain.ErrInvalidInput.Error():
		return http.StatusBadRequest
	case domain.ErrNotFound.Error():
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// searchStatus maps a search envelope to an HTTP status.
func searchStatus(result domain.SearchResult) int {
	if result.Success {
		return http.StatusOK
	}
	if result.Error == domain.ErrInvalidInput.Error() {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
