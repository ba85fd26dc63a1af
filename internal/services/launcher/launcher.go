// Package launcher starts job processes without waiting for them.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"cronjobs/internal/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnvLaunchID carries the launch id into the child for log correlation.
const EnvLaunchID = "CRONJOBS_LAUNCH_ID"

var (
	ErrLaunchFailed = errors.New("failed to launch job process")
	ErrEmptySlug    = errors.New("job slug is required")
)

// Launcher starts the process that runs a job. Implementations return as soon
// as the process exists; completion is only observable through the execution
// log.
type Launcher interface {
	Launch(ctx context.Context, slug string) (*Handle, error)
}

// Handle describes a started job process. Callers may ignore it.
type Handle struct {
	LaunchID  string    `json:"launch_id"`
	Slug      string    `json:"slug"`
	PID       int       `json:"pid"`
	Command   []string  `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

type processLauncher struct {
	command string
	args    []string
	workDir string
	log     *logrus.Logger
}

// NewProcessLauncher builds a launcher running `<command> <args...> <slug>`.
// An empty command resolves to the current executable.
func NewProcessLauncher(cfg config.LauncherConfig, log *logrus.Logger) (Launcher, error) {
	command := cfg.Command
	if command == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve current executable: %w", err)
		}
		command = self
	}
	return &processLauncher{
		command: command,
		args:    append([]string(nil), cfg.Args...),
		workDir: cfg.WorkDir,
		log:     log,
	}, nil
}

// CommandLine returns the argv that launching slug would execute.
func (l *processLauncher) CommandLine(slug string) []string {
	argv := make([]string, 0, len(l.args)+2)
	argv = append(argv, l.command)
	argv = append(argv, l.args...)
	return append(argv, slug)
}

func (l *processLauncher) Launch(ctx context.Context, slug string) (*Handle, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrEmptySlug
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	launchID := uuid.NewString()
	argv := l.CommandLine(slug)

	// exec.Command rather than CommandContext: the child must outlive ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = l.workDir
	cmd.Env = append(os.Environ(), EnvLaunchID+"="+launchID)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	detach(cmd)

	if err := cmd.Start(); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"slug":    slug,
			"command": argv,
		}).Error("Failed to launch job process")
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunchFailed, slug, err)
	}

	handle := &Handle{
		LaunchID:  launchID,
		Slug:      slug,
		PID:       cmd.Process.Pid,
		Command:   argv,
		StartedAt: time.Now(),
	}

	l.log.WithFields(logrus.Fields{
		"slug":      slug,
		"launch_id": launchID,
		"pid":       handle.PID,
	}).Info("Job process launched")

	// Reap the child so it never lingers as a zombie. Nothing acts on the
	// exit status; the execution log is the source of truth.
	go func() {
		err := cmd.Wait()
		entry := l.log.WithFields(logrus.Fields{
			"slug":      slug,
			"launch_id": launchID,
			"pid":       handle.PID,
		})
		if err != nil {
			entry.WithError(err).Debug("Job process exited with error")
			return
		}
		entry.Debug("Job process exited")
	}()

	return handle, nil
}
