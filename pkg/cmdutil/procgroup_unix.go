//go:build unix

package cmdutil

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the command in a new process group and makes context
// cancellation kill the whole group, so scripts that fork helpers do not leave
// orphans behind.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
