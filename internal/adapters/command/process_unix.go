//go:build !windows

package command

import (
	"os/exec"
	"syscall"
)

// configureProcAttr starts the command in its own process group and makes
// context cancellation kill the whole group, so tools spawned by the phase
// command do not outlive it.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if err == syscall.ESRCH {
			return nil
		}
		return err
	}
}
