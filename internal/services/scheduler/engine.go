// Package scheduler is the cron trigger engine: one loop that sleeps until the
// nearest fire time and hands due jobs to the launcher.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"cronjobs/internal/models"
	"cronjobs/internal/repository"
	"cronjobs/internal/schedule"
	"cronjobs/internal/services/launcher"
	"cronjobs/internal/utils"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrDuplicateTrigger = errors.New("trigger already registered")
	ErrEngineRunning    = errors.New("engine is already running")
)

// StatusPublisher receives the next fire time of every trigger after each
// recompute.
type StatusPublisher interface {
	PublishNextRuns(ctx context.Context, next map[string]time.Time) error
}

type trigger struct {
	slug     string
	expr     string
	schedule cron.Schedule
	next     time.Time
}

type Option func(*Engine)

// WithClock replaces the wall clock and the timer used to sleep between fire
// times.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.after = after
	}
}

// WithLocation evaluates cron expressions in loc instead of local time.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

func WithStatusPublisher(p StatusPublisher) Option {
	return func(e *Engine) {
		e.status = p
	}
}

// WithStatusRefresh republishes next fire times every d, keeping the heartbeat
// fresh between fires.
func WithStatusRefresh(d time.Duration) Option {
	return func(e *Engine) {
		e.statusEvery = d
	}
}

// Engine owns the registered triggers. It is created by the process entry
// point and is not safe to register into while Run is active.
type Engine struct {
	launcher    launcher.Launcher
	log         *logrus.Logger
	now         func() time.Time
	after       func(time.Duration) <-chan time.Time
	loc         *time.Location
	status      StatusPublisher
	statusEvery time.Duration
	triggers    []*trigger
	bySlug      map[string]*trigger
	running     bool
}

func NewEngine(l launcher.Launcher, log *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		launcher: l,
		log:      log,
		now:      time.Now,
		after:    time.After,
		loc:      time.Local,
		bySlug:   make(map[string]*trigger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds one recurring trigger keyed by slug.
func (e *Engine) Register(slug, expr string) error {
	if e.running {
		return ErrEngineRunning
	}
	if slug == "" {
		return launcher.ErrEmptySlug
	}
	if _, exists := e.bySlug[slug]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTrigger, slug)
	}
	sch, err := schedule.Parse(expr)
	if err != nil {
		return fmt.Errorf("job %s: %w", slug, err)
	}

	t := &trigger{slug: slug, expr: expr, schedule: sch}
	e.triggers = append(e.triggers, t)
	e.bySlug[slug] = t
	return nil
}

// Load registers every active, scheduled job with a cron expression. A job
// that fails registration is logged and skipped. It returns how many
// triggers were registered.
func (e *Engine) Load(ctx context.Context, jobs repository.JobsRepository) (int, error) {
	catalog, err := jobs.Get(ctx, &models.GetJobParam{
		IsActive:    utils.ToPointer(true),
		IsScheduled: utils.ToPointer(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load scheduled jobs: %w", err)
	}

	registered := 0
	for _, job := range catalog {
		if !job.Schedulable() {
			continue
		}
		if err := e.Register(job.Slug, job.Cron); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"slug": job.Slug,
				"cron": job.Cron,
			}).Error("Failed to register job, skipping")
			continue
		}
		e.log.WithFields(logrus.Fields{
			"slug": job.Slug,
			"cron": job.Cron,
		}).Info("Registered scheduled job")
		registered++
	}
	return registered, nil
}

// Slugs lists the registered triggers in registration order.
func (e *Engine) Slugs() []string {
	slugs := make([]string, 0, len(e.triggers))
	for _, t := range e.triggers {
		slugs = append(slugs, t.slug)
	}
	return slugs
}

// Run blocks until ctx is cancelled. Failures while firing a job are logged
// and never end the loop.
func (e *Engine) Run(ctx context.Context) error {
	if e.running {
		return ErrEngineRunning
	}
	e.running = true
	defer func() { e.running = false }()

	e.log.WithField("triggers", len(e.triggers)).Info("Scheduler started")

	now := e.now().In(e.loc)
	for _, t := range e.triggers {
		t.next = t.schedule.Next(now)
	}
	e.dropExhausted()
	e.publish(ctx)

	var refresh <-chan time.Time
	if e.status != nil && e.statusEvery > 0 {
		ticker := time.NewTicker(e.statusEvery)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		if len(e.triggers) == 0 {
			select {
			case <-ctx.Done():
				e.log.Info("Scheduler stopped")
				return nil
			case <-refresh:
				e.publish(ctx)
				continue
			}
		}

		e.sortTriggers()
		wait := e.triggers[0].next.Sub(e.now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			e.log.Info("Scheduler stopped")
			return nil
		case <-refresh:
			e.publish(ctx)
			continue
		case <-e.after(wait):
		}

		e.tick(ctx)
	}
}

// tick fires every due trigger and moves each past the current instant.
func (e *Engine) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.WithFields(logrus.Fields{
				"panic": rec,
				"stack": string(debug.Stack()),
			}).Error("Recovered from panic in scheduler loop")
		}
	}()

	now := e.now().In(e.loc)
	for _, t := range e.triggers {
		if t.next.IsZero() {
			continue
		}
		if t.next.After(now) {
			break
		}
		e.fire(ctx, t)
		t.next = t.schedule.Next(now)
	}
	e.dropExhausted()
	e.publish(ctx)
}

// dropExhausted unregisters triggers whose schedule has no fire time left.
// Their zero next time would otherwise sort first and fire on every pass.
func (e *Engine) dropExhausted() {
	kept := e.triggers[:0]
	for _, t := range e.triggers {
		if !t.next.IsZero() {
			kept = append(kept, t)
			continue
		}
		e.log.WithFields(logrus.Fields{
			"slug": t.slug,
			"cron": t.expr,
		}).Error("Schedule has no future fire time, unregistering job")
		delete(e.bySlug, t.slug)
	}
	for i := len(kept); i < len(e.triggers); i++ {
		e.triggers[i] = nil
	}
	e.triggers = kept
}

func (e *Engine) fire(ctx context.Context, t *trigger) {
	entry := e.log.WithFields(logrus.Fields{
		"slug":      t.slug,
		"planned":   t.next.Format(time.RFC3339),
		"component": "scheduler",
	})
	defer func() {
		if rec := recover(); rec != nil {
			entry.WithField("panic", rec).Error("Recovered from panic while firing job")
		}
	}()

	handle, err := e.launcher.Launch(ctx, t.slug)
	if err != nil {
		entry.WithError(err).Error("Failed to launch scheduled job, skipping this tick")
		return
	}
	entry.WithFields(logrus.Fields{
		"launch_id": handle.LaunchID,
		"pid":       handle.PID,
	}).Info("Fired scheduled job")
}

// NextRuns reports the current next fire time per slug.
func (e *Engine) NextRuns() map[string]time.Time {
	next := make(map[string]time.Time, len(e.triggers))
	for _, t := range e.triggers {
		next[t.slug] = t.next
	}
	return next
}

func (e *Engine) publish(ctx context.Context) {
	if e.status == nil {
		return
	}
	if err := e.status.PublishNextRuns(ctx, e.NextRuns()); err != nil {
		e.log.WithError(err).Warn("Failed to publish next run times")
	}
}

func (e *Engine) sortTriggers() {
	sort.SliceStable(e.triggers, func(i, j int) bool {
		return e.triggers[i].next.Before(e.triggers[j].next)
	})
}
