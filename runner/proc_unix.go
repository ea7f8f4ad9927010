//go:build unix

package runner

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup starts the program in its own process group and makes
// cancellation kill the whole group, so forked children do not outlive it
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
}

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	// negative pid signals the process group
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
