//go:build !unix

package cmdutil

import "os/exec"

// setProcessGroup falls back to killing only the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
