package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Mode           string
	AllowedOrigins []string
	RatePerSecond  float64
	Burst          int
}

func NewRouter(cfg RouterConfig, h *Handler, logger zerolog.Logger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	limiter := NewRateLimiter(cfg.RatePerSecond, cfg.Burst)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	r.Use(RequestLogger(logger.With().Str("component", "http").Logger()))
	r.Use(limiter.Middleware())

	r.GET("/health", h.HealthCheck)
	r.GET("/rate-limit/status", limiter.Status)

	r.GET("/price", h.Price)
	r.GET("/rating", h.Rating)
	r.GET("/resolve", h.Resolve)
	r.POST("/compare", h.Compare)
	r.GET("/regional", h.Regional)

	r.GET("/cache/stats", h.CacheStats)
	r.GET("/cache/keys/:key", h.CacheKey)
	r.DELETE("/cache/keys/:key", h.DeleteCacheKey)

	return r
}
