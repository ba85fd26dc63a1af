package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SchedulerStatus is what the scheduler process publishes about itself.
type SchedulerStatus interface {
	SchedulerAlive(ctx context.Context) (bool, error)
	NextRuns(ctx context.Context) (map[string]time.Time, error)
}

type HealthHandler struct {
	status SchedulerStatus
	logger *logrus.Logger
}

// NewHealthHandler accepts a nil status when no status board is configured.
func NewHealthHandler(status SchedulerStatus, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		status: status,
		logger: logger,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "cronjobs",
	}

	if h.status != nil {
		alive, err := h.status.SchedulerAlive(c.Request.Context())
		if err != nil {
			h.logger.WithError(err).Warn("Failed to read scheduler heartbeat")
			body["scheduler"] = "unknown"
		} else if alive {
			body["scheduler"] = "alive"
		} else {
			body["scheduler"] = "stale"
		}
	}

	c.JSON(http.StatusOK, body)
}

// SchedulerNextRuns handles GET /api/v1/scheduler/next-runs
func (h *HealthHandler) SchedulerNextRuns(c *gin.Context) {
	if h.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Status board disabled",
			"message": "redis is not configured",
		})
		return
	}

	next, err := h.status.NextRuns(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read next runs")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read next runs",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_runs": next})
}
