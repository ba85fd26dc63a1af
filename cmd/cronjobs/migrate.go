package main

import (
	"context"

	"gorm.io/gorm"

	"cronjobs/internal/repository"
	"cronjobs/internal/services/scripts"
	"cronjobs/internal/utils"
)

func runMigrate(ctx context.Context, a *app, args []string) int {
	fs := newFlagSet("migrate")
	seed := fs.Bool("seed", false, "create catalog entries for the built-in jobs")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		fs.Usage()
		return exitUsage
	}

	db, err := a.openDB()
	if err != nil {
		a.logger.WithError(err).Error("Failed to initialize database")
		return exitFailure
	}
	defer db.Close()

	if err := repository.AutoMigrate(ctx, db.DB); err != nil {
		a.logger.WithError(err).Error("Failed to migrate database")
		return exitFailure
	}
	a.logger.Info("Database schema is up to date")

	if *seed {
		var created int
		err := db.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			created, err = scripts.SeedCatalog(ctx, repository.NewJobsRepository(db.DB), utils.WithTx(tx))
			return err
		})
		if err != nil {
			a.logger.WithError(err).Error("Failed to seed job catalog")
			return exitFailure
		}
		a.logger.WithField("created", created).Info("Seeded job catalog")
	}
	return exitOK
}
