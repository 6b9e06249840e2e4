package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smarttransit/seat-segment-backend/internal/database"
)

// JobStatusReporter reports scheduled job state for the health endpoint
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// HealthHandler serves the health check
type HealthHandler struct {
	db      database.DB
	jobs    JobStatusReporter
	version string
}

// NewHealthHandler creates a new health handler; jobs may be nil
func NewHealthHandler(db database.DB, jobs JobStatusReporter, version string) *HealthHandler {
	return &HealthHandler{db: db, jobs: jobs, version: version}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
			"error":    err.Error(),
		})
		return
	}

	body := gin.H{
		"status":    "healthy",
		"database":  "healthy",
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	}
	if h.jobs != nil {
		body["jobs"] = h.jobs.GetJobStatus()
	}
	c.JSON(http.StatusOK, body)
}
