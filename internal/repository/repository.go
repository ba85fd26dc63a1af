package repository

import (
	"context"
	"errors"
	"fmt"

	"cronjobs/internal/models"

	"gorm.io/gorm"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrDuplicateSlug       = errors.New("job slug already exists")
	ErrExecutionNotRunning = errors.New("execution is not running")
)

// AutoMigrate creates or upgrades the catalog and execution log tables.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.JobEntity{}, &models.ExecutionEntity{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Maintain refreshes planner statistics for the catalog tables.
func Maintain(ctx context.Context, db *gorm.DB) error {
	for _, table := range []string{models.JobEntity{}.TableName(), models.ExecutionEntity{}.TableName()} {
		if err := db.WithContext(ctx).Exec("ANALYZE " + table).Error; err != nil {
			return fmt.Errorf("failed to analyze %s: %w", table, err)
		}
	}
	return nil
}
