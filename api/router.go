package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/chronicle/api/handler"
	"github.com/use-agent/chronicle/api/middleware"
	"github.com/use-agent/chronicle/cache"
	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/report"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(co *coordinate.Coordinator, rd *report.Renderer, src handler.StatsSource, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(src, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Synchronous collection
	protected.POST("/collect", handler.Collect(co, cc))

	// Async jobs
	protected.POST("/jobs", handler.PostJob(co, cfg.Webhook))
	protected.GET("/jobs/:id", handler.GetJob())

	// Report rendering
	protected.POST("/report", handler.Report(rd))

	return r
}
