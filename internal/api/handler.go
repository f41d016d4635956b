package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"price-resolution-api/internal/models"
	"price-resolution-api/pkg/cache"
)

// Resolver is the resolution surface the handlers call.
type Resolver interface {
	ResolvePrice(ctx context.Context, brand, name, variant, region string) (*models.PriceCandidate, error)
	ResolveRating(ctx context.Context, fullName string) (*models.RatingCandidate, error)
	Resolve(ctx context.Context, q models.ProductQuery) (*models.ResolutionResult, error)
	Compare(ctx context.Context, products []models.ProductQuery, region string) ([]*models.ResolutionResult, error)
	ResolveRegional(ctx context.Context, brand, name, variant string) (*models.RegionalComparison, error)
}

type Handler struct {
	resolver Resolver
	cache    *cache.Cache
	version  string
	logger   zerolog.Logger
}

func NewHandler(resolver Resolver, c *cache.Cache, version string, logger zerolog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		cache:    c,
		version:  version,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

type productParams struct {
	Brand   string `form:"brand"`
	Name    string `form:"name" binding:"required"`
	Variant string `form:"variant"`
	Region  string `form:"region"`
}

func (p productParams) query() models.ProductQuery {
	return models.ProductQuery{Brand: p.Brand, Name: p.Name, Variant: p.Variant, Region: p.Region}
}

type priceResponse struct {
	Product models.ProductQuery    `json:"product"`
	Price   *models.PriceCandidate `json:"price"`
	Display string                 `json:"display,omitempty"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":  "healthy",
		"service": "price-resolution-api",
		"version": h.version,
	}
	if h.cache.Available() {
		health["cache"] = h.cache.Stats(c.Request.Context())["status"]
	} else {
		health["cache"] = "unavailable"
	}
	c.JSON(http.StatusOK, health)
}

func (h *Handler) Price(c *gin.Context) {
	var p productParams
	if err := c.ShouldBindQuery(&p); err != nil {
		h.badRequest(c, err)
		return
	}

	price, err := h.resolver.ResolvePrice(c.Request.Context(), p.Brand, p.Name, p.Variant, p.Region)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := priceResponse{Product: p.query(), Price: price}
	if price != nil {
		resp.Display = price.Display()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Rating(c *gin.Context) {
	product := strings.TrimSpace(c.Query("product"))
	if product == "" {
		h.badRequest(c, errors.New("query parameter 'product' is required"))
		return
	}

	rating, err := h.resolver.ResolveRating(c.Request.Context(), product)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"rating":  rating.APIResponse(),
	})
}

func (h *Handler) Resolve(c *gin.Context) {
	var p productParams
	if err := c.ShouldBindQuery(&p); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.resolver.Resolve(c.Request.Context(), p.query())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Compare(c *gin.Context) {
	start := time.Now()
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	results, err := h.resolver.Compare(c.Request.Context(), req.Products, req.Region)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": results,
		"duration": time.Since(start).String(),
	})
}

func (h *Handler) Regional(c *gin.Context) {
	var p productParams
	if err := c.ShouldBindQuery(&p); err != nil {
		h.badRequest(c, err)
		return
	}

	out, err := h.resolver.ResolveRegional(c.Request.Context(), p.Brand, p.Name, p.Variant)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CacheStats(c *gin.Context) {
	if !h.cache.Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache not available"})
		return
	}
	c.JSON(http.StatusOK, h.cache.Stats(c.Request.Context()))
}

func (h *Handler) CacheKey(c *gin.Context) {
	info, ok := h.cache.Inspect(c.Request.Context(), c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "no live cache entry for key",
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) DeleteCacheKey(c *gin.Context) {
	if !h.cache.Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache not available"})
		return
	}
	key := c.Param("key")
	if !h.cache.Delete(c.Request.Context(), key) {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "cache_delete_failed",
			Code:    http.StatusInternalServerError,
			Message: "failed to delete " + key,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted":   key,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, models.ErrInvalidRequest) {
		h.badRequest(c, err)
		return
	}
	h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("resolution failed")
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "resolution_failed",
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	})
}
