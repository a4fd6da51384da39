//go:build unix

package jasper

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the engine in its own process group so that a
// timeout kills the launcher script together with the JVM it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
