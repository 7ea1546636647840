package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/profilescan/models"
)

// SessionChecker reports whether a persisted browser session exists.
type SessionChecker interface {
	Exists() bool
}

// Health returns a handler for GET /api/v1/health.
//
// Status is "busy" while a scan runs, "healthy" otherwise.
func Health(scans *Scans, sessions SessionChecker, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := scans.Active()

		status := "healthy"
		if active {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			Version:       models.Version,
			ScanActive:    active,
			SessionExists: sessions.Exists(),
		})
	}
}
