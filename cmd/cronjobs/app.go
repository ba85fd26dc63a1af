package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"cronjobs/internal/config"
	"cronjobs/internal/services/notifier"
	"cronjobs/internal/services/recorder"
	"cronjobs/pkg/postgres"
	"cronjobs/pkg/redis"
)

type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func (a *app) openDB() (*postgres.DB, error) {
	return postgres.NewDB(a.cfg.Database)
}

// statusBoard connects to Redis when configured. A nil board with a nil error
// means the status board is disabled.
func (a *app) statusBoard(ctx context.Context) (*redis.StatusBoard, func(), error) {
	if !a.cfg.Redis.Enabled() {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(ctx, a.cfg.Redis)
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
	return redis.NewStatusBoard(client, a.cfg.Scheduler.HeartbeatTTL), closeFn, nil
}

// failureNotifier returns the Telegram notifier, or nil when not configured.
func (a *app) failureNotifier() recorder.Notifier {
	n, err := notifier.NewTelegramNotifier(a.cfg.Telegram, a.logger)
	if err != nil {
		if !errors.Is(err, notifier.ErrNotConfigured) {
			a.logger.WithError(err).Warn("Failed to initialize Telegram notifier, continuing without it")
		}
		return nil
	}
	return n
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cronjobs %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}
