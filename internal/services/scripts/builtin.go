package scripts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/services/recorder"
	"cronjobs/internal/utils"

	"gorm.io/gorm"
)

const (
	SlugPruneExecutions = "prune-executions"
	SlugCatalogReport   = "catalog-report"
	SlugDBMaintenance   = "db-maintenance"
)

// Deps are the collaborators the built-in bodies need.
type Deps struct {
	DB            *gorm.DB
	Jobs          repository.JobsRepository
	Executions    repository.ExecutionsRepository
	RetentionDays int
	Now           func() time.Time
}

// RegisterBuiltins binds the administrative bodies shipped with the binary.
func RegisterBuiltins(r *Registry, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r.Register(SlugPruneExecutions, PruneExecutions(deps.Executions, deps.RetentionDays, deps.Now))
	r.Register(SlugCatalogReport, CatalogReport(deps.Jobs, deps.Now))
	r.Register(SlugDBMaintenance, DBMaintenance(deps.DB))
}

// PruneExecutions deletes completed executions older than retentionDays.
func PruneExecutions(executions repository.ExecutionsRepository, retentionDays int, now func() time.Time) recorder.Body {
	return func(ctx context.Context) (string, error) {
		if retentionDays <= 0 {
			return "", fmt.Errorf("retention must be positive, got %d days", retentionDays)
		}
		cutoff := now().AddDate(0, 0, -retentionDays)
		deleted, err := executions.DeleteCompletedBefore(ctx, cutoff)
		if err != nil {
			return "", fmt.Errorf("failed to prune executions: %w", err)
		}
		return fmt.Sprintf("Pruned %d executions started before %s", deleted, cutoff.Format(time.RFC3339)), nil
	}
}

// CatalogReport summarises the catalog and lists each job's next fire time.
func CatalogReport(jobs repository.JobsRepository, now func() time.Time) recorder.Body {
	return func(ctx context.Context) (string, error) {
		catalog, err := jobs.Get(ctx, nil)
		if err != nil {
			return "", fmt.Errorf("failed to load catalog: %w", err)
		}

		var active, scheduled, manual int
		for _, job := range catalog {
			if job.IsActive {
				active++
			}
			if job.Schedulable() {
				scheduled++
			}
			if job.IsManual {
				manual++
			}
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Jobs: %d total, %d active, %d scheduled, %d manual", len(catalog), active, scheduled, manual)
		ref := now()
		for i := range catalog {
			job := &catalog[i]
			fmt.Fprintf(&sb, "\n- %s: last run %s, next run %s",
				job.Slug, utils.PrettyDate(job.LastRun), utils.PrettyDate(job.NextRun(ref)))
		}
		return sb.String(), nil
	}
}

// DBMaintenance refreshes planner statistics on the catalog tables.
func DBMaintenance(db *gorm.DB) recorder.Body {
	return func(ctx context.Context) (string, error) {
		if err := repository.Maintain(ctx, db); err != nil {
			return "", err
		}
		return fmt.Sprintf("Analyzed tables %s, %s",
			models.JobEntity{}.TableName(), models.ExecutionEntity{}.TableName()), nil
	}
}
