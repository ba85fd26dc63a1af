package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cronjobs/internal/schedule"

	"gorm.io/gorm"
)

var (
	ErrSlugRequired = errors.New("job slug is required")
	ErrNameRequired = errors.New("job name is required")
	ErrCronRequired = errors.New("scheduled job requires a cron expression")
)

// JobEntity is a catalog entry for one administrative script.
type JobEntity struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"type:varchar(200);not null" json:"name"`
	Description  string     `gorm:"type:text" json:"description"`
	Cron         string     `gorm:"type:varchar(100)" json:"cron"`
	ScheduleText string     `gorm:"type:varchar(200)" json:"schedule_text"`
	LastRun      *time.Time `json:"last_run"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsScheduled  bool       `gorm:"not null" json:"is_scheduled"`
	IsManual     bool       `gorm:"not null" json:"is_manual"`
	Slug         string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Executions []ExecutionEntity `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"executions,omitempty"`
}

func (JobEntity) TableName() string {
	return "jobs"
}

// Validate enforces the catalog write invariants.
func (j *JobEntity) Validate() error {
	j.Slug = strings.TrimSpace(j.Slug)
	j.Cron = strings.TrimSpace(j.Cron)

	if j.Slug == "" {
		return ErrSlugRequired
	}
	if strings.TrimSpace(j.Name) == "" {
		return ErrNameRequired
	}
	if j.Cron != "" {
		if err := schedule.Validate(j.Cron); err != nil {
			return fmt.Errorf("job %s: %w", j.Slug, err)
		}
	}
	if j.IsScheduled && j.Cron == "" {
		return fmt.Errorf("job %s: %w", j.Slug, ErrCronRequired)
	}
	return nil
}

// BeforeSave rejects invalid jobs on every gorm write path.
func (j *JobEntity) BeforeSave(*gorm.DB) error {
	return j.Validate()
}

// Schedulable reports whether the cron engine should register this job.
func (j *JobEntity) Schedulable() bool {
	return j.IsActive && j.IsScheduled && j.Cron != ""
}

// NextRun is the next cron fire time after ref, or nil when the job is not
// schedulable.
func (j *JobEntity) NextRun(ref time.Time) *time.Time {
	if !j.Schedulable() {
		return nil
	}
	next, err := schedule.NextRun(j.Cron, ref)
	if err != nil {
		return nil
	}
	return &next
}

type GetJobParam struct {
	Slugs       []string `json:"slugs"`
	IsActive    *bool    `json:"is_active"`
	IsScheduled *bool    `json:"is_scheduled"`
	IsManual    *bool    `json:"is_manual"`
	Limit       *int     `json:"limit"`
}

// JobRequest is the writable subset of a job accepted by the admin API.
type JobRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Cron         string `json:"cron"`
	ScheduleText string `json:"schedule_text"`
	IsActive     *bool  `json:"is_active"`
	IsScheduled  bool   `json:"is_scheduled"`
	IsManual     bool   `json:"is_manual"`
	Slug         string `json:"slug"`
}

// Apply copies the request onto job. Slug is only taken when job has none.
func (r *JobRequest) Apply(job *JobEntity) {
	job.Name = r.Name
	job.Description = r.Description
	job.Cron = r.Cron
	job.ScheduleText = r.ScheduleText
	job.IsScheduled = r.IsScheduled
	job.IsManual = r.IsManual
	if r.IsActive != nil {
		job.IsActive = *r.IsActive
	} else if job.ID == 0 {
		job.IsActive = true
	}
	if job.Slug == "" {
		job.Slug = r.Slug
	}
}

// JobResponse is a catalog entry as presented by the admin API.
type JobResponse struct {
	JobEntity
	NextRun    *time.Time `json:"next_run"`
	ManualLink string     `json:"manual_link,omitempty"`
}
