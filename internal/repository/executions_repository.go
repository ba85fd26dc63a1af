package repository

import (
	"context"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/utils"

	"gorm.io/gorm"
)

type ExecutionsRepository interface {
	Create(ctx context.Context, execution *models.ExecutionEntity, opts ...utils.DBOption) error
	Complete(ctx context.Context, execution *models.ExecutionEntity, opts ...utils.DBOption) error
	Get(ctx context.Context, param *models.GetExecutionParam, opts ...utils.DBOption) ([]models.ExecutionEntity, error)
	DeleteCompletedBefore(ctx context.Context, before time.Time, opts ...utils.DBOption) (int64, error)
}

type executionsRepository struct {
	db *gorm.DB
}

func NewExecutionsRepository(db *gorm.DB) ExecutionsRepository {
	return &executionsRepository{db: db}
}

func (r *executionsRepository) Create(ctx context.Context, execution *models.ExecutionEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Create(execution).Error
}

// Complete applies the one allowed transition, running to completed. A row
// that is no longer running is left untouched and ErrExecutionNotRunning is
// returned.
func (r *executionsRepository) Complete(ctx context.Context, execution *models.ExecutionEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&models.ExecutionEntity{}).
		Where("id = ? AND status = ?", execution.ID, models.StatusRunning).
		Updates(map[string]interface{}{
			"status":   models.StatusCompleted,
			"ended_at": execution.EndedAt,
			"success":  execution.Success,
			"result":   execution.Result,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrExecutionNotRunning
	}
	execution.Status = models.StatusCompleted
	return nil
}

func (r *executionsRepository) Get(ctx context.Context, param *models.GetExecutionParam, opts ...utils.DBOption) ([]models.ExecutionEntity, error) {
	var executions []models.ExecutionEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.ExecutionEntity{})
	if param != nil {
		if param.JobID != nil {
			db = db.Where("job_id = ?", *param.JobID)
		}
		if param.Status != nil {
			db = db.Where("status = ?", *param.Status)
		}
		if param.Limit > 0 {
			db = db.Limit(param.Limit)
		}
	}
	if err := db.Order("started_at DESC, id DESC").Find(&executions).Error; err != nil {
		return nil, err
	}
	return executions, nil
}

// DeleteCompletedBefore prunes finished executions that started before the
// cutoff. Running rows are never pruned.
func (r *executionsRepository) DeleteCompletedBefore(ctx context.Context, before time.Time, opts ...utils.DBOption) (int64, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("status = ? AND started_at < ?", models.StatusCompleted, before).Delete(&models.ExecutionEntity{})
	return result.RowsAffected, result.Error
}
