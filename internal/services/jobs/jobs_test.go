package jobs

import (
	"context"
	"io"
	"testing"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/schedule"
	"cronjobs/internal/services/launcher"
	"cronjobs/internal/testutil/sqlitedb"
	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	slugs []string
	err   error
}

func (l *fakeLauncher) Launch(_ context.Context, slug string) (*launcher.Handle, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.slugs = append(l.slugs, slug)
	return &launcher.Handle{LaunchID: "launch-1", Slug: slug, PID: 4242}, nil
}

type denyAfter struct {
	allowed int
}

func (d *denyAfter) Allow(string) bool {
	if d.allowed == 0 {
		return false
	}
	d.allowed--
	return true
}

type fixture struct {
	service    JobService
	launcher   *fakeLauncher
	executions repository.ExecutionsRepository
}

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	db := sqlitedb.New(t)
	jobs := repository.NewJobsRepository(db)
	executions := repository.NewExecutionsRepository(db)
	for _, job := range []*models.JobEntity{
		{Name: "Backup", Slug: "backup", Cron: "0 3 * * *", IsActive: true, IsScheduled: true, IsManual: true},
		{Name: "Cleanup", Slug: "cleanup", Cron: "*/15 * * * *", IsActive: true, IsScheduled: true},
		{Name: "Legacy", Slug: "legacy", IsActive: false, IsManual: true},
	} {
		require.NoError(t, jobs.Create(ctx, job))
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	l := &fakeLauncher{}
	opts = append([]Option{WithClock(func() time.Time { return testNow }, time.UTC)}, opts...)
	return &fixture{
		service:    NewJobService(log, jobs, executions, l, opts...),
		launcher:   l,
		executions: executions,
	}
}

func TestTriggerManual(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr error
	}{
		{name: "manual and active", slug: "backup"},
		{name: "unknown job", slug: "missing", wantErr: repository.ErrJobNotFound},
		{name: "inactive job", slug: "legacy", wantErr: ErrJobInactive},
		{name: "schedule only job", slug: "cleanup", wantErr: ErrManualNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			handle, err := f.service.TriggerManual(context.Background(), tt.slug)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, handle)
				assert.Empty(t, f.launcher.slugs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 4242, handle.PID)
			assert.Equal(t, []string{tt.slug}, f.launcher.slugs)
		})
	}
}

func TestTriggerManualDoesNotRecordExecution(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.TriggerManual(context.Background(), "backup")
	require.NoError(t, err)

	rows, err := f.executions.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTriggerManualLaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = launcher.ErrLaunchFailed

	_, err := f.service.TriggerManual(context.Background(), "backup")
	assert.ErrorIs(t, err, launcher.ErrLaunchFailed)
}

func TestTriggerManualRateLimited(t *testing.T) {
	f := newFixture(t, WithLimiter(&denyAfter{allowed: 1}))

	_, err := f.service.TriggerManual(context.Background(), "backup")
	require.NoError(t, err)

	_, err = f.service.TriggerManual(context.Background(), "backup")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, f.launcher.slugs, 1)
}

func TestListPresentsNextRunAndManualLink(t *testing.T) {
	f := newFixture(t)

	jobs, err := f.service.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	bySlug := make(map[string]models.JobResponse)
	for _, job := range jobs {
		bySlug[job.Slug] = job
	}

	backup := bySlug["backup"]
	require.NotNil(t, backup.NextRun)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), *backup.NextRun)
	assert.Equal(t, "/api/v1/jobs/backup/run", backup.ManualLink)

	cleanup := bySlug["cleanup"]
	require.NotNil(t, cleanup.NextRun)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC), *cleanup.NextRun)
	assert.Empty(t, cleanup.ManualLink)

	legacy := bySlug["legacy"]
	assert.Nil(t, legacy.NextRun)
	assert.Empty(t, legacy.ManualLink)
}

func TestCreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, &models.JobRequest{
		Name:        "Rotate logs",
		Slug:        "rotate-logs",
		Cron:        "30 2 * * 0",
		IsScheduled: true,
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = f.service.Create(ctx, &models.JobRequest{Name: "Again", Slug: "rotate-logs"})
	assert.ErrorIs(t, err, repository.ErrDuplicateSlug)

	_, err = f.service.Create(ctx, &models.JobRequest{Name: "Bad", Slug: "bad", Cron: "every day", IsScheduled: true})
	assert.ErrorIs(t, err, schedule.ErrInvalidCron)

	updated, err := f.service.Update(ctx, "rotate-logs", &models.JobRequest{
		Name:        "Rotate logs",
		Slug:        "renamed",
		Cron:        "0 1 * * *",
		IsActive:    utils.ToPointer(false),
		IsScheduled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "rotate-logs", updated.Slug)
	assert.Equal(t, "0 1 * * *", updated.Cron)
	assert.False(t, updated.IsActive)

	got, err := f.service.Get(ctx, "rotate-logs")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.NextRun)

	_, err = f.service.Update(ctx, "missing", &models.JobRequest{Name: "x"})
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestExecutionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.service.Get(ctx, "backup")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.executions.Create(ctx, &models.ExecutionEntity{
			JobID:     utils.ToPointer(job.ID),
			StartedAt: testNow.Add(time.Duration(i) * time.Hour),
			Status:    models.StatusRunning,
			Success:   models.OutcomePending,
		}))
	}

	rows, err := f.service.Executions(ctx, "backup", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].StartedAt.After(rows[1].StartedAt))

	rows, err = f.service.Executions(ctx, "backup", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = f.service.Executions(ctx, "missing", 10)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}
