package main

import (
	"context"
	"fmt"
	"time"

	"cronjobs/internal/schedule"
	"cronjobs/internal/utils"
)

// runNextRun prints the next fire time of a cron expression, for display.
func runNextRun(_ context.Context, a *app, args []string) int {
	fs := newFlagSet("next-run")
	tz := fs.String("tz", a.cfg.Scheduler.TimeZone, "time zone the expression is evaluated in")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return exitUsage
	}

	loc, err := utils.LoadLocation(*tz)
	if err != nil {
		a.logger.WithError(err).Error("Failed to load time zone")
		return exitUsage
	}

	ref := time.Now().In(loc)
	if fs.NArg() == 2 {
		parsed, err := time.Parse(time.RFC3339, fs.Arg(1))
		if err != nil {
			a.logger.WithError(err).Error("Invalid reference time, want RFC3339")
			return exitUsage
		}
		ref = parsed.In(loc)
	}

	next, err := schedule.NextRun(fs.Arg(0), ref)
	if err != nil {
		a.logger.WithError(err).Error("Invalid cron expression")
		return exitFailure
	}
	fmt.Println(next.Format(time.RFC3339))
	return exitOK
}
