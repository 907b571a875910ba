package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandeshsk12/port/models"
	"github.com/sandeshsk12/port/renderer"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports page pool utilisation and degrades status when > 80% of pages
// are active. browser may be nil when the server runs HTTP-only.
func Health(browser *renderer.BrowserEngine, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		if browser != nil {
			stats = browser.Stats()
		}

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
