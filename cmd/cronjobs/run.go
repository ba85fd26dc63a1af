package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/services/launcher"
	"cronjobs/internal/services/recorder"
	"cronjobs/internal/services/scripts"
)

// runJob is the entry point the launcher spawns: it resolves the slug to a
// body and runs it under the execution recorder.
func runJob(ctx context.Context, a *app, args []string) int {
	fs := newFlagSet("run")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	slug := fs.Arg(0)
	launchID := os.Getenv(launcher.EnvLaunchID)
	entry := a.logger.WithFields(logrus.Fields{"slug": slug, "launch_id": launchID})

	db, err := a.openDB()
	if err != nil {
		entry.WithError(err).Error("Failed to initialize database")
		return exitFailure
	}
	defer db.Close()

	jobsRepository := repository.NewJobsRepository(db.DB)
	executionsRepository := repository.NewExecutionsRepository(db.DB)

	registry := scripts.NewRegistry(a.cfg.Scripts.Dir, a.logger)
	scripts.RegisterBuiltins(registry, scripts.Deps{
		DB:            db.DB,
		Jobs:          jobsRepository,
		Executions:    executionsRepository,
		RetentionDays: a.cfg.Scripts.ExecutionRetentionDays,
	})
	body, err := registry.Resolve(slug)
	if err != nil {
		entry.WithError(err).Error("Failed to resolve job body")
		return exitFailure
	}

	opts := []recorder.Option{recorder.WithLaunchID(launchID)}
	if n := a.failureNotifier(); n != nil {
		opts = append(opts, recorder.WithNotifier(n))
	}
	rec := recorder.New(jobsRepository, executionsRepository, a.logger, opts...)

	execution, err := rec.RunTracked(ctx, slug, body)
	if err != nil {
		entry.WithError(err).Error("Failed to record job run")
		return exitFailure
	}
	if execution.Success != models.OutcomeSucceeded {
		return exitFailure
	}
	return exitOK
}
