package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/services/launcher"
	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
)

var (
	ErrJobInactive      = errors.New("job is not active")
	ErrManualNotAllowed = errors.New("job does not allow manual runs")
	ErrRateLimited      = errors.New("too many manual runs, try again later")
)

const (
	defaultExecutionLimit = 20
	maxExecutionLimit     = 200
)

// Limiter gates manual runs per job slug.
type Limiter interface {
	Allow(key string) bool
}

type JobService interface {
	List(ctx context.Context, param *models.GetJobParam, opts ...utils.DBOption) ([]models.JobResponse, error)
	Get(ctx context.Context, slug string, opts ...utils.DBOption) (*models.JobResponse, error)
	Create(ctx context.Context, req *models.JobRequest, opts ...utils.DBOption) (*models.JobEntity, error)
	Update(ctx context.Context, slug string, req *models.JobRequest, opts ...utils.DBOption) (*models.JobEntity, error)
	Executions(ctx context.Context, slug string, limit int, opts ...utils.DBOption) ([]models.ExecutionEntity, error)
	TriggerManual(ctx context.Context, slug string) (*launcher.Handle, error)
}

type Option func(*jobService)

func WithLimiter(l Limiter) Option {
	return func(s *jobService) {
		s.limiter = l
	}
}

func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *jobService) {
		s.now = now
		s.loc = loc
	}
}

type jobService struct {
	log                  *logrus.Logger
	jobsRepository       repository.JobsRepository
	executionsRepository repository.ExecutionsRepository
	launcher             launcher.Launcher
	limiter              Limiter
	now                  func() time.Time
	loc                  *time.Location
}

func NewJobService(log *logrus.Logger, jobsRepository repository.JobsRepository, executionsRepository repository.ExecutionsRepository, l launcher.Launcher, opts ...Option) JobService {
	s := &jobService{
		log:                  log,
		jobsRepository:       jobsRepository,
		executionsRepository: executionsRepository,
		launcher:             l,
		now:                  time.Now,
		loc:                  time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *jobService) List(ctx context.Context, param *models.GetJobParam, opts ...utils.DBOption) ([]models.JobResponse, error) {
	jobs, err := s.jobsRepository.Get(ctx, param, opts...)
	if err != nil {
		s.log.WithError(err).Error("Failed to get jobs")
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	ref := s.now().In(s.loc)
	out := make([]models.JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, present(&jobs[i], ref))
	}
	return out, nil
}

func (s *jobService) Get(ctx context.Context, slug string, opts ...utils.DBOption) (*models.JobResponse, error) {
	job, err := s.jobsRepository.GetBySlug(ctx, slug, opts...)
	if err != nil {
		return nil, err
	}
	resp := present(job, s.now().In(s.loc))
	return &resp, nil
}

func (s *jobService) Create(ctx context.Context, req *models.JobRequest, opts ...utils.DBOption) (*models.JobEntity, error) {
	job := &models.JobEntity{}
	req.Apply(job)
	if err := s.jobsRepository.Create(ctx, job, opts...); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"slug": job.Slug, "cron": job.Cron}).Info("Created job")
	return job, nil
}

// Update rewrites the job identified by slug. The slug itself never changes.
func (s *jobService) Update(ctx context.Context, slug string, req *models.JobRequest, opts ...utils.DBOption) (*models.JobEntity, error) {
	job, err := s.jobsRepository.GetBySlug(ctx, slug, opts...)
	if err != nil {
		return nil, err
	}
	req.Apply(job)
	if err := s.jobsRepository.Update(ctx, job, opts...); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"slug": job.Slug, "cron": job.Cron}).Info("Updated job")
	return job, nil
}

// Executions lists the newest runs of a job. Limit is clamped to a sane page.
func (s *jobService) Executions(ctx context.Context, slug string, limit int, opts ...utils.DBOption) ([]models.ExecutionEntity, error) {
	job, err := s.jobsRepository.GetBySlug(ctx, slug, opts...)
	if err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultExecutionLimit
	case limit > maxExecutionLimit:
		limit = maxExecutionLimit
	}
	return s.executionsRepository.Get(ctx, &models.GetExecutionParam{
		JobID: utils.ToPointer(job.ID),
		Limit: limit,
	}, opts...)
}

// TriggerManual launches an out-of-schedule run. The run itself is recorded
// by the launched process, not here.
func (s *jobService) TriggerManual(ctx context.Context, slug string) (*launcher.Handle, error) {
	job, err := s.jobsRepository.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !job.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrJobInactive, slug)
	}
	if !job.IsManual {
		return nil, fmt.Errorf("%w: %s", ErrManualNotAllowed, slug)
	}
	if s.limiter != nil && !s.limiter.Allow(slug) {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, slug)
	}

	handle, err := s.launcher.Launch(ctx, job.Slug)
	if err != nil {
		s.log.WithError(err).WithField("slug", slug).Error("Failed to launch manual run")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"slug":      slug,
		"launch_id": handle.LaunchID,
		"pid":       handle.PID,
	}).Info("Launched manual run")
	return handle, nil
}

// ManualLink is the admin API path that triggers slug.
func ManualLink(slug string) string {
	return "/api/v1/jobs/" + slug + "/run"
}

func present(job *models.JobEntity, ref time.Time) models.JobResponse {
	resp := models.JobResponse{
		JobEntity: *job,
		NextRun:   job.NextRun(ref),
	}
	if job.IsActive && job.IsManual {
		resp.ManualLink = ManualLink(job.Slug)
	}
	return resp
}
