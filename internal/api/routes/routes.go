package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cronjobs/internal/api/handlers"
	"cronjobs/internal/api/middleware"
)

func SetupRoutes(router *gin.Engine, adminToken string, logger *logrus.Logger, healthHandler *handlers.HealthHandler, jobsHandler *handlers.JobsHandler) {
	// Health check
	router.GET("/health", healthHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/scheduler/next-runs", healthHandler.SchedulerNextRuns)

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobsHandler.ListJobs)
			jobs.GET("/:slug", jobsHandler.GetJob)
			jobs.GET("/:slug/executions", jobsHandler.ListExecutions)

			admin := jobs.Group("", middleware.AdminToken(adminToken, logger))
			admin.POST("", jobsHandler.CreateJob)
			admin.PUT("/:slug", jobsHandler.UpdateJob)
			admin.POST("/:slug/run", jobsHandler.TriggerJob)
		}
	}
}
