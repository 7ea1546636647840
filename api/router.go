package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/profilescan/api/handler"
	"github.com/use-agent/profilescan/api/middleware"
	"github.com/use-agent/profilescan/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(cfg *config.Config, scans *handler.Scans, sessions handler.SessionChecker, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(scans, sessions, startTime))

	protected := v1.Group("")
	if cfg.API.Enabled {
		protected.Use(middleware.Auth(cfg.API.Keys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scan", scans.Handler())

	return r
}
