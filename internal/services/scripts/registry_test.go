package scripts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/testutil/sqlitedb"
	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeScript(t *testing.T, dir, name, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), mode))
}

func TestResolvePrefersBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "backup", "echo from-file", 0o755)

	r := NewRegistry(dir, newTestLogger())
	r.Register("backup", func(context.Context) (string, error) { return "from-builtin", nil })

	body, err := r.Resolve("backup")
	require.NoError(t, err)
	out, err := body(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-builtin", out)
}

func TestResolveRunsScriptFile(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "rotate-logs.sh", "echo rotated; echo done 1>&2", 0o755)

	body, err := NewRegistry(dir, newTestLogger()).Resolve("rotate-logs")
	require.NoError(t, err)

	out, err := body(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "rotated")
	assert.Contains(t, out, "done")
}

func TestScriptFailureCarriesOutput(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken", "echo disk full; exit 3", 0o755)

	body, err := NewRegistry(dir, newTestLogger()).Resolve("broken")
	require.NoError(t, err)

	out, err := body(context.Background())
	assert.Empty(t, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestResolveUnknownScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "not-executable", "echo nope", 0o644)
	r := NewRegistry(dir, newTestLogger())

	for _, slug := range []string{"missing", "not-executable", "../etc/passwd", ".hidden", ""} {
		t.Run(slug, func(t *testing.T) {
			body, err := r.Resolve(slug)
			assert.Nil(t, body)
			assert.ErrorIs(t, err, ErrUnknownScript)
		})
	}
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	db := sqlitedb.New(t)
	jobs := repository.NewJobsRepository(db)
	executions := repository.NewExecutionsRepository(db)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	job := &models.JobEntity{Name: "Prune", Slug: SlugPruneExecutions, Cron: "0 4 * * *", IsActive: true, IsScheduled: true}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, jobs.Create(ctx, &models.JobEntity{Name: "Report", Slug: SlugCatalogReport, IsActive: true, IsManual: true}))

	old := &models.ExecutionEntity{
		JobID:     utils.ToPointer(job.ID),
		StartedAt: now.AddDate(0, 0, -40),
		Status:    models.StatusCompleted,
		EndedAt:   utils.ToPointer(now.AddDate(0, 0, -40)),
		Success:   models.OutcomeSucceeded,
		Result:    "ok",
	}
	recent := &models.ExecutionEntity{
		JobID:     utils.ToPointer(job.ID),
		StartedAt: now.AddDate(0, 0, -1),
		Status:    models.StatusCompleted,
		EndedAt:   utils.ToPointer(now.AddDate(0, 0, -1)),
		Success:   models.OutcomeSucceeded,
		Result:    "ok",
	}
	require.NoError(t, executions.Create(ctx, old))
	require.NoError(t, executions.Create(ctx, recent))

	r := NewRegistry(t.TempDir(), newTestLogger())
	RegisterBuiltins(r, Deps{
		DB:            db,
		Jobs:          jobs,
		Executions:    executions,
		RetentionDays: 30,
		Now:           func() time.Time { return now },
	})
	assert.Equal(t, []string{SlugCatalogReport, SlugDBMaintenance, SlugPruneExecutions}, r.Names())

	t.Run("prune-executions", func(t *testing.T) {
		body, err := r.Resolve(SlugPruneExecutions)
		require.NoError(t, err)
		out, err := body(ctx)
		require.NoError(t, err)
		assert.Contains(t, out, "Pruned 1 executions")

		rows, err := executions.Get(ctx, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, recent.ID, rows[0].ID)
	})

	t.Run("catalog-report", func(t *testing.T) {
		body, err := r.Resolve(SlugCatalogReport)
		require.NoError(t, err)
		out, err := body(ctx)
		require.NoError(t, err)
		assert.Contains(t, out, "Jobs: 2 total, 2 active, 1 scheduled, 1 manual")
		assert.Contains(t, out, "- prune-executions: last run -, next run 02 Jun 2024 04:00 UTC")
	})

	t.Run("db-maintenance", func(t *testing.T) {
		body, err := r.Resolve(SlugDBMaintenance)
		require.NoError(t, err)
		out, err := body(ctx)
		require.NoError(t, err)
		assert.Contains(t, out, "jobs")
	})
}

func TestPruneExecutionsRejectsNonPositiveRetention(t *testing.T) {
	body := PruneExecutions(nil, 0, time.Now)
	_, err := body(context.Background())
	assert.Error(t, err)
}

func TestSeedCatalogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	jobs := repository.NewJobsRepository(sqlitedb.New(t))

	require.NoError(t, jobs.Create(ctx, &models.JobEntity{
		Name: "Custom prune", Slug: SlugPruneExecutions, IsActive: false, IsManual: true,
	}))

	created, err := SeedCatalog(ctx, jobs)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = SeedCatalog(ctx, jobs)
	require.NoError(t, err)
	assert.Zero(t, created)

	prune, err := jobs.GetBySlug(ctx, SlugPruneExecutions)
	require.NoError(t, err)
	assert.Equal(t, "Custom prune", prune.Name)
	assert.False(t, prune.IsActive)

	all, err := jobs.Get(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
