package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"cronjobs/internal/config"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type command struct {
	usage string
	run   func(ctx context.Context, app *app, args []string) int
}

var commands map[string]command

// init populates commands; a package-level initializer would form an
// initialization cycle through newFlagSet, which reads commands.
func init() {
	commands = map[string]command{
		"scheduler": {usage: "scheduler", run: runScheduler},
		"run":       {usage: "run <slug>", run: runJob},
		"serve":     {usage: "serve [--port PORT]", run: runServe},
		"migrate":   {usage: "migrate [--seed]", run: runMigrate},
		"next-run":  {usage: "next-run <cron> [RFC3339 reference] [--tz ZONE]", run: runNextRun},
	}
}

var commandOrder = []string{"scheduler", "run", "serve", "migrate", "next-run"}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printUsage()
		return exitUsage
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		return exitFailure
	}

	logrusLevel, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Error("Failed to parse log level")
		return exitFailure
	}
	logger.SetLevel(logrusLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.run(ctx, &app{cfg: cfg, logger: logger}, args[1:])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: cronjobs <command> [arguments]")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}
