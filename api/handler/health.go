package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/chronicle/models"
)

// StatsSource reports worker surface usage. Implemented by the rod surface
// manager.
type StatsSource interface {
	Stats() models.SurfaceStats
}

// Health returns a handler for GET /api/v1/health.
//
// Reports surface utilisation and degrades status when > 80% of the tab
// ceiling is in use.
func Health(src StatsSource, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := src.Stats()

		status := "healthy"
		if stats.MaxSurfaces > 0 && stats.ActiveSurfaces > int(float64(stats.MaxSurfaces)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SurfaceStats: stats,
			Version:      "0.1.0",
		})
	}
}
