//go:build windows

package supervisor

import "os/exec"

// setProcGroup is a no-op on Windows; the child is terminated directly.
func setProcGroup(cmd *exec.Cmd) {}

// killGroup terminates the child process.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
