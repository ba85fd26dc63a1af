//go:build unix

package launcher

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so a terminal interrupt
// aimed at the scheduler does not also kill running jobs.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
