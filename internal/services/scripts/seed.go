package scripts

import (
	"context"
	"errors"
	"fmt"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/utils"
)

// DefaultCatalog is the catalog entry for every built-in body.
func DefaultCatalog() []models.JobEntity {
	return []models.JobEntity{
		{
			Name:         "Prune executions",
			Slug:         SlugPruneExecutions,
			Description:  "Delete completed execution records past the retention window",
			Cron:         "0 4 * * *",
			ScheduleText: "Daily at 04:00",
			IsActive:     true,
			IsScheduled:  true,
			IsManual:     true,
		},
		{
			Name:         "Catalog report",
			Slug:         SlugCatalogReport,
			Description:  "Summarise the job catalog with last and next runs",
			ScheduleText: "On demand",
			IsActive:     true,
			IsManual:     true,
		},
		{
			Name:         "Database maintenance",
			Slug:         SlugDBMaintenance,
			Description:  "Refresh planner statistics on the catalog tables",
			Cron:         "30 4 * * 0",
			ScheduleText: "Sundays at 04:30",
			IsActive:     true,
			IsScheduled:  true,
			IsManual:     true,
		},
	}
}

// SeedCatalog creates the missing default entries and leaves existing ones
// untouched. It returns how many were created.
func SeedCatalog(ctx context.Context, jobs repository.JobsRepository, opts ...utils.DBOption) (int, error) {
	created := 0
	for _, job := range DefaultCatalog() {
		if _, err := jobs.GetBySlug(ctx, job.Slug, opts...); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrJobNotFound) {
			return created, fmt.Errorf("failed to look up %s: %w", job.Slug, err)
		}
		if err := jobs.Create(ctx, &job, opts...); err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", job.Slug, err)
		}
		created++
	}
	return created, nil
}
