// Package scripts resolves a job slug to the body a launched process runs.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"cronjobs/internal/services/recorder"
	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
)

var ErrUnknownScript = errors.New("no script registered for job")

// maxOutput bounds how much external script output lands in a record.
const maxOutput = 16 * 1024

// Registry maps slugs to built-in bodies and falls back to executables in dir.
type Registry struct {
	dir    string
	log    *logrus.Logger
	bodies map[string]recorder.Body
}

func NewRegistry(dir string, log *logrus.Logger) *Registry {
	return &Registry{
		dir:    dir,
		log:    log,
		bodies: make(map[string]recorder.Body),
	}
}

// Register binds body to slug, replacing any earlier binding.
func (r *Registry) Register(slug string, body recorder.Body) {
	r.bodies[slug] = body
}

// Names lists the built-in slugs in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bodies))
	for name := range r.bodies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the body for slug. A built-in wins over a script file.
func (r *Registry) Resolve(slug string) (recorder.Body, error) {
	if body, ok := r.bodies[slug]; ok {
		return body, nil
	}
	path, err := r.scriptPath(slug)
	if err != nil {
		return nil, err
	}
	return r.external(path), nil
}

func (r *Registry) scriptPath(slug string) (string, error) {
	if slug == "" || strings.ContainsAny(slug, `/\`) || strings.HasPrefix(slug, ".") {
		return "", fmt.Errorf("%w: %q", ErrUnknownScript, slug)
	}
	for _, name := range []string{slug, slug + ".sh"} {
		path := filepath.Join(r.dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0o111 == 0 {
			r.log.WithField("path", path).Warn("Script file is not executable, skipping")
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownScript, slug)
}

// external runs the script with its combined output as the result.
func (r *Registry) external(path string) recorder.Body {
	return func(ctx context.Context) (string, error) {
		if stop, err := utils.ShouldStopCtx(ctx, r.log); stop {
			return "", err
		}

		cmd := exec.CommandContext(ctx, path)
		cmd.Dir = r.dir
		cmd.Env = os.Environ()
		out, err := cmd.CombinedOutput()
		output := utils.TruncateText(strings.TrimSpace(string(out)), maxOutput)
		if err != nil {
			if output == "" {
				return "", fmt.Errorf("script %s failed: %w", filepath.Base(path), err)
			}
			return "", fmt.Errorf("script %s failed: %w\n%s", filepath.Base(path), err, output)
		}
		return output, nil
	}
}
