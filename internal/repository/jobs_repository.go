package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/utils"
	"cronjobs/pkg/postgres"

	"gorm.io/gorm"
)

type JobsRepository interface {
	Create(ctx context.Context, job *models.JobEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, job *models.JobEntity, opts ...utils.DBOption) error
	Delete(ctx context.Context, jobID uint, opts ...utils.DBOption) error
	Get(ctx context.Context, param *models.GetJobParam, opts ...utils.DBOption) ([]models.JobEntity, error)
	GetBySlug(ctx context.Context, slug string, opts ...utils.DBOption) (*models.JobEntity, error)
	TouchLastRun(ctx context.Context, jobID uint, at time.Time, opts ...utils.DBOption) error
}

type jobsRepository struct {
	db *gorm.DB
}

func NewJobsRepository(db *gorm.DB) JobsRepository {
	return &jobsRepository{db: db}
}

func (r *jobsRepository) Create(ctx context.Context, job *models.JobEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Create(job).Error; err != nil {
		return translateJobError(job, err)
	}
	return nil
}

func (r *jobsRepository) Update(ctx context.Context, job *models.JobEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Save(job).Error; err != nil {
		return translateJobError(job, err)
	}
	return nil
}

// Delete removes the job together with its executions. The schema also
// carries an ON DELETE CASCADE foreign key; deleting the rows explicitly keeps
// the behaviour identical on stores that do not enforce it.
func (r *jobsRepository) Delete(ctx context.Context, jobID uint, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.ExecutionEntity{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.JobEntity{}, jobID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrJobNotFound
		}
		return nil
	})
}

func (r *jobsRepository) Get(ctx context.Context, param *models.GetJobParam, opts ...utils.DBOption) ([]models.JobEntity, error) {
	var jobs []models.JobEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.JobEntity{})
	if param != nil {
		if len(param.Slugs) > 0 {
			db = db.Where("slug IN ?", param.Slugs)
		}
		if param.IsActive != nil {
			db = db.Where("is_active = ?", *param.IsActive)
		}
		if param.IsScheduled != nil {
			db = db.Where("is_scheduled = ?", *param.IsScheduled)
		}
		if param.IsManual != nil {
			db = db.Where("is_manual = ?", *param.IsManual)
		}
		if param.Limit != nil {
			db = db.Limit(*param.Limit)
		}
	}
	if err := db.Order("name ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobsRepository) GetBySlug(ctx context.Context, slug string, opts ...utils.DBOption) (*models.JobEntity, error) {
	var job models.JobEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Where("slug = ?", slug).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, slug)
		}
		return nil, err
	}
	return &job, nil
}

// TouchLastRun overwrites last_run without running save hooks.
func (r *jobsRepository) TouchLastRun(ctx context.Context, jobID uint, at time.Time, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&models.JobEntity{}).Where("id = ?", jobID).UpdateColumn("last_run", at).Error
}

func translateJobError(job *models.JobEntity, err error) error {
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateSlug, job.Slug)
	}
	return err
}
