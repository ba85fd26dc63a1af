package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"cronjobs/internal/repository"
	"cronjobs/internal/services/launcher"
	"cronjobs/internal/services/scheduler"
	"cronjobs/internal/utils"
)

// runScheduler blocks in the trigger loop until interrupted.
func runScheduler(ctx context.Context, a *app, args []string) int {
	fs := newFlagSet("scheduler")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		fs.Usage()
		return exitUsage
	}

	loc, err := utils.LoadLocation(a.cfg.Scheduler.TimeZone)
	if err != nil {
		a.logger.WithError(err).Error("Failed to load scheduler time zone")
		return exitFailure
	}

	// Initialize database
	db, err := a.openDB()
	if err != nil {
		a.logger.WithError(err).Error("Failed to initialize database")
		return exitFailure
	}
	defer db.Close()

	l, err := launcher.NewProcessLauncher(a.cfg.Launcher, a.logger)
	if err != nil {
		a.logger.WithError(err).Error("Failed to initialize launcher")
		return exitFailure
	}

	opts := []scheduler.Option{scheduler.WithLocation(loc)}
	board, closeBoard, err := a.statusBoard(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Status board unavailable, scheduling without it")
	} else if board != nil {
		defer closeBoard()
		opts = append(opts,
			scheduler.WithStatusPublisher(board),
			scheduler.WithStatusRefresh(a.cfg.Scheduler.HeartbeatTTL/2))
	}

	engine := scheduler.NewEngine(l, a.logger, opts...)
	registered, err := engine.Load(ctx, repository.NewJobsRepository(db.DB))
	if err != nil {
		a.logger.WithError(err).Error("Failed to load job catalog")
		return exitFailure
	}
	a.logger.WithFields(logrus.Fields{
		"registered": registered,
		"time_zone":  loc.String(),
	}).Info("Job catalog loaded")

	if err := engine.Run(ctx); err != nil {
		a.logger.WithError(err).Error("Scheduler stopped with error")
		return exitFailure
	}
	a.logger.Info("Scheduler exited")
	return exitOK
}
