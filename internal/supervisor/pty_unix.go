//go:build !windows

package supervisor

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// startPTY starts the worker under a pseudo-terminal and pumps its combined
// output into the stdout sink. The pty gives the child a controlling
// terminal so it streams unbuffered; pty.Start puts it in a new session,
// which is its own process group, so group kill by negative pid still holds.
func startPTY(cmd *exec.Cmd, outF, errF *os.File) (*workerProc, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		// Caller falls back to pipe mode with the same sink handles.
		return nil, err
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		// Copy until the child closes its side; the read error on pty
		// close is the normal termination signal, not a failure.
		_, _ = io.Copy(outF, ptmx)
	}()

	return &workerProc{
		wait: func() int {
			code := exitCode(cmd.Wait())
			return code
		},
		kill: func() {
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		},
		release: func() {
			ptmx.Close()
			<-pumpDone
			outF.Close()
			errF.Close()
		},
	}, nil
}
