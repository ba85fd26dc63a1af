// Package recorder wraps job bodies so every run leaves exactly one durable
// execution record behind.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
)

// ErrEmptyResult is recorded when a body returns without a result. A run that
// reports nothing is not trusted as a success.
var ErrEmptyResult = errors.New("job completed without producing a result")

// Body is the work of one job. The returned string describes what was done.
type Body func(ctx context.Context) (string, error)

// Notifier is told about every execution that finished as failed.
type Notifier interface {
	NotifyFailure(ctx context.Context, job *models.JobEntity, execution *models.ExecutionEntity) error
}

type Option func(*Recorder)

// WithClock replaces time.Now for record timestamps and duration.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func WithNotifier(n Notifier) Option {
	return func(r *Recorder) {
		r.notifier = n
	}
}

// WithLaunchID tags log lines with the id the launcher gave this process.
func WithLaunchID(id string) Option {
	return func(r *Recorder) {
		r.launchID = id
	}
}

// Recorder holds no state across invocations besides its collaborators.
type Recorder struct {
	jobs       repository.JobsRepository
	executions repository.ExecutionsRepository
	log        *logrus.Logger
	now        func() time.Time
	notifier   Notifier
	launchID   string
}

func New(jobs repository.JobsRepository, executions repository.ExecutionsRepository, log *logrus.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		jobs:       jobs,
		executions: executions,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunTracked runs body for the job identified by slug and records the run.
//
// An unknown slug aborts before any record exists. Once the running record is
// written, the body's error, panic or empty result is captured into the
// record and never returned. The returned error only reports catalog or
// persistence failures.
func (r *Recorder) RunTracked(ctx context.Context, slug string, body Body) (*models.ExecutionEntity, error) {
	job, err := r.jobs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job %s: %w", slug, err)
	}

	execution := &models.ExecutionEntity{
		JobID:     utils.ToPointer(job.ID),
		StartedAt: r.now(),
		Status:    models.StatusRunning,
		Success:   models.OutcomePending,
	}
	if err := r.executions.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution for %s: %w", slug, err)
	}

	entry := r.log.WithFields(logrus.Fields{
		"slug":         slug,
		"execution_id": execution.ID,
	})
	if r.launchID != "" {
		entry = entry.WithField("launch_id", r.launchID)
	}

	// last_run is written before the body so a crash still shows the attempt.
	if err := r.jobs.TouchLastRun(ctx, job.ID, execution.StartedAt); err != nil {
		entry.WithError(err).Warn("Failed to update job last run")
	}

	started := time.Now()
	result, runErr := invoke(ctx, body)
	elapsed := time.Since(started)

	switch {
	case runErr != nil:
		execution.Success = models.OutcomeFailed
		execution.Result = runErr.Error()
	case strings.TrimSpace(result) == "":
		runErr = ErrEmptyResult
		execution.Success = models.OutcomeFailed
		execution.Result = ErrEmptyResult.Error()
	default:
		execution.Success = models.OutcomeSucceeded
		execution.Result = result
	}
	execution.Result = utils.SanitizeText(execution.Result + "\n\nDuration: " + utils.FormatDuration(elapsed))
	execution.EndedAt = utils.ToPointer(r.now())

	// The body may have consumed ctx; the final write must still land.
	if err := r.complete(context.WithoutCancel(ctx), entry, execution); err != nil {
		entry.WithError(err).Error("Failed to complete execution record")
		return execution, fmt.Errorf("failed to complete execution %d: %w", execution.ID, err)
	}
	if execution.Success == models.OutcomeFailed && runErr == nil {
		runErr = errors.New(execution.Result)
	}

	entry.WithField("success", execution.Success).Info(execution.Result)
	if runErr != nil {
		entry.WithError(runErr).WithFields(logrus.Fields{
			"job":      job.Name,
			"duration": elapsed.String(),
		}).Error("Job execution failed")
		r.notify(ctx, entry, job, execution)
	}

	return execution, nil
}

// complete writes the final state. When the store refuses the result itself,
// the run is closed as failed with the storage error instead, so the row never
// stays running.
func (r *Recorder) complete(ctx context.Context, entry *logrus.Entry, execution *models.ExecutionEntity) error {
	err := r.executions.Complete(ctx, execution)
	if err == nil || errors.Is(err, repository.ErrExecutionNotRunning) {
		return err
	}

	entry.WithError(err).Warn("Failed to store execution result, recording failure without it")
	execution.Success = models.OutcomeFailed
	execution.Result = utils.SanitizeText("failed to store execution result: " + err.Error())
	return r.executions.Complete(ctx, execution)
}

func (r *Recorder) notify(ctx context.Context, entry *logrus.Entry, job *models.JobEntity, execution *models.ExecutionEntity) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyFailure(context.WithoutCancel(ctx), job, execution); err != nil {
		entry.WithError(err).Warn("Failed to send failure notification")
	}
}

// invoke calls body and turns a panic into an error carrying the stack.
func invoke(ctx context.Context, body Body) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	return body(ctx)
}
