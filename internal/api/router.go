package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"calendar-sync-backend/config"
	"calendar-sync-backend/internal/mw"
)

const statusPath = "/api/status"

// NewRouter creates and configures a new Gin router. gatherer backs the /metrics endpoint.
func NewRouter(cfg config.ServerConfig, handler *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{statusPath}}), gin.Recovery())

	// Initialize middleware
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	r.GET(statusPath, handler.GetStatus)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// GET /api/calendar/{id}?start_after=...&end_before=...
		api.GET("/calendar/:id", caching, handler.GetCalendar)
	}

	return r
}
