package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/schedule"
	"cronjobs/internal/services/jobs"
)

type JobsHandler struct {
	jobService jobs.JobService
	logger     *logrus.Logger
}

func NewJobsHandler(jobService jobs.JobService, logger *logrus.Logger) *JobsHandler {
	return &JobsHandler{
		jobService: jobService,
		logger:     logger,
	}
}

// ListJobs handles GET /api/v1/jobs
func (h *JobsHandler) ListJobs(c *gin.Context) {
	param := &models.GetJobParam{}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid active filter", err)
			return
		}
		param.IsActive = &active
	}

	list, err := h.jobService.List(c.Request.Context(), param)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

// GetJob handles GET /api/v1/jobs/:slug
func (h *JobsHandler) GetJob(c *gin.Context) {
	job, err := h.jobService.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListExecutions handles GET /api/v1/jobs/:slug/executions
func (h *JobsHandler) ListExecutions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "Invalid limit", err)
			return
		}
		limit = n
	}

	executions, err := h.jobService.Executions(c.Request.Context(), c.Param("slug"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

// CreateJob handles POST /api/v1/jobs
func (h *JobsHandler) CreateJob(c *gin.Context) {
	var req models.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	job, err := h.jobService.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// UpdateJob handles PUT /api/v1/jobs/:slug
func (h *JobsHandler) UpdateJob(c *gin.Context) {
	var req models.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", err)
		return
	}

	job, err := h.jobService.Update(c.Request.Context(), c.Param("slug"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// TriggerJob handles POST /api/v1/jobs/:slug/run
func (h *JobsHandler) TriggerJob(c *gin.Context) {
	handle, err := h.jobService.TriggerManual(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":     "launched",
		"slug":       handle.Slug,
		"launch_id":  handle.LaunchID,
		"pid":        handle.PID,
		"started_at": handle.StartedAt.Format(time.RFC3339),
	})
}

func (h *JobsHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"slug":   c.Param("slug"),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}
	c.JSON(status, gin.H{
		"error":   http.StatusText(status),
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrJobInactive), errors.Is(err, repository.ErrDuplicateSlug):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrManualNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, jobs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, schedule.ErrInvalidCron),
		errors.Is(err, models.ErrCronRequired),
		errors.Is(err, models.ErrSlugRequired),
		errors.Is(err, models.ErrNameRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["message"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
