//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the child in its own process group so the entire child
// tree can be killed at once.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup kills the whole process group (negative pid). The worker may
// have spawned its own sub-processes; killing only the immediate child would
// orphan them.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
