package launcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cronjobs/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestLaunchPassesSlugAndLaunchID(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	t.Setenv("LAUNCH_TEST_OUT", out)

	l, err := NewProcessLauncher(config.LauncherConfig{
		Command: "sh",
		Args:    []string{"-c", `printf '%s %s' "$0" "$CRONJOBS_LAUNCH_ID" > "$LAUNCH_TEST_OUT"`},
	}, newTestLogger())
	require.NoError(t, err)

	handle, err := l.Launch(context.Background(), "prune-executions")
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Greater(t, handle.PID, 0)
	assert.Equal(t, "prune-executions", handle.Slug)
	assert.NotEmpty(t, handle.LaunchID)
	assert.Equal(t, "prune-executions", handle.Command[len(handle.Command)-1])

	var content string
	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(out)
		if err != nil {
			return false
		}
		content = string(raw)
		return strings.Contains(content, " ")
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "prune-executions "+handle.LaunchID, content)
}

func TestLaunchReturnsBeforeChildFinishes(t *testing.T) {
	l, err := NewProcessLauncher(config.LauncherConfig{
		Command: "sh",
		Args:    []string{"-c", "sleep 2"},
	}, newTestLogger())
	require.NoError(t, err)

	started := time.Now()
	_, err = l.Launch(context.Background(), "slow")
	require.NoError(t, err)

	assert.Less(t, time.Since(started), time.Second)
}

func TestLaunchMissingExecutable(t *testing.T) {
	l, err := NewProcessLauncher(config.LauncherConfig{
		Command: filepath.Join(t.TempDir(), "does-not-exist"),
	}, newTestLogger())
	require.NoError(t, err)

	handle, err := l.Launch(context.Background(), "backup")
	assert.Nil(t, handle)
	assert.ErrorIs(t, err, ErrLaunchFailed)
}

func TestLaunchRejectsEmptySlug(t *testing.T) {
	l, err := NewProcessLauncher(config.LauncherConfig{Command: "true"}, newTestLogger())
	require.NoError(t, err)

	_, err = l.Launch(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptySlug)
}

func TestCommandLineDefaultsToCurrentExecutable(t *testing.T) {
	l, err := NewProcessLauncher(config.LauncherConfig{Args: []string{"run"}}, newTestLogger())
	require.NoError(t, err)

	self, err := os.Executable()
	require.NoError(t, err)

	argv := l.(*processLauncher).CommandLine("backup")
	assert.Equal(t, []string{self, "run", "backup"}, argv)
}
