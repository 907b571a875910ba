package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandeshsk12/port/api/handler"
	"github.com/sandeshsk12/port/api/middleware"
	"github.com/sandeshsk12/port/config"
	"github.com/sandeshsk12/port/jobs"
	"github.com/sandeshsk12/port/renderer"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(rend *renderer.Renderer, browser *renderer.BrowserEngine, store *jobs.Store, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(browser, startTime))

	// Protected group: auth, then rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Single-page mirror
	protected.POST("/mirror", handler.PostMirror(rend, store, cfg))
	protected.GET("/mirror/:id", handler.GetMirror(store))

	// Multi-tab site mirror
	protected.POST("/site", handler.PostSite(rend, store, cfg))

	return r
}
