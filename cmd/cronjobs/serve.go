package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cronjobs/internal/api/handlers"
	"cronjobs/internal/api/routes"
	"cronjobs/internal/repository"
	"cronjobs/internal/services/jobs"
	"cronjobs/internal/services/launcher"
	"cronjobs/internal/utils"
	"cronjobs/pkg/ratelimit"
)

const shutdownTimeout = 15 * time.Second

// runServe serves the admin API: listings, catalog writes and manual runs.
func runServe(ctx context.Context, a *app, args []string) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fs := newFlagSet("serve")
	port := fs.String("port", a.cfg.Server.Port, "HTTP listen port")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		fs.Usage()
		return exitUsage
	}

	if a.cfg.Admin.Token == "" {
		a.logger.Warn("ADMIN_TOKEN is empty, catalog writes and manual runs are disabled")
	}

	// Set Gin mode based on environment
	if a.cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Setup CORS
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Admin-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize database
	db, err := a.openDB()
	if err != nil {
		a.logger.WithError(err).Error("Failed to initialize database")
		return exitFailure
	}
	defer db.Close()

	loc, err := utils.LoadLocation(a.cfg.Scheduler.TimeZone)
	if err != nil {
		a.logger.WithError(err).Error("Failed to load scheduler time zone")
		return exitFailure
	}

	l, err := launcher.NewProcessLauncher(a.cfg.Launcher, a.logger)
	if err != nil {
		a.logger.WithError(err).Error("Failed to initialize launcher")
		return exitFailure
	}

	limiter := ratelimit.NewKeyedRateLimiter(ratelimit.Config{
		PerMinute:       a.cfg.Admin.ManualTriggerPerMinute,
		ExpireDuration:  a.cfg.Admin.RateLimitExpire,
		CleanupDuration: a.cfg.Admin.RateLimitCleanup,
	}, a.logger)
	limiter.StartCleanupExpired(ctx)

	var status handlers.SchedulerStatus
	board, closeBoard, err := a.statusBoard(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Status board unavailable, serving without scheduler status")
	} else if board != nil {
		defer closeBoard()
		status = board
	}

	// Initialize services
	jobService := jobs.NewJobService(a.logger,
		repository.NewJobsRepository(db.DB),
		repository.NewExecutionsRepository(db.DB),
		l,
		jobs.WithLimiter(limiter),
		jobs.WithClock(time.Now, loc))

	// Setup routes
	routes.SetupRoutes(router, a.cfg.Admin.Token, a.logger,
		handlers.NewHealthHandler(status, a.logger),
		handlers.NewJobsHandler(jobService, a.logger))

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	utils.SafeGo(func() {
		a.logger.WithField("port", *port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	})

	exitCode := exitOK
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
	case err, ok := <-serverErr:
		if ok {
			a.logger.WithError(err).Error("Failed to start server")
			exitCode = exitFailure
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Server forced to shutdown")
	} else {
		a.logger.Info("HTTP server shutdown completed successfully")
	}

	cancel()
	limiter.StopCleanupExpired()
	a.logger.Info("Server exited")
	return exitCode
}
