package supervisor

import (
	"os"
	"os/exec"
	"strings"
)

// workerProc abstracts a launched worker so the supervision loop does not
// care whether the child runs behind pipes or a pseudo-terminal.
type workerProc struct {
	// wait blocks until the child exits and returns its exit code.
	wait func() int
	// kill terminates the whole process group; wait still must be drained
	// afterwards to reap the child.
	kill func()
	// release closes sink handles and pty resources. Safe to call after
	// any exit path.
	release func()
}

// launch starts the worker with stdout/stderr captured to the sink files.
//
// In pipe mode the payload is fed on stdin. In pty mode the payload is
// passed as the final positional argument instead (a pty has no clean EOF
// for stdin) and both output streams arrive interleaved on the pty, pumped
// into the stdout sink; pty start failures fall back to pipe mode.
func launch(cmd *exec.Cmd, payload string, usePTY bool, stdoutPath, stderrPath string) (*workerProc, error) {
	outF, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	errF, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		outF.Close()
		return nil, err
	}

	if usePTY {
		ptyCmd := *cmd
		ptyCmd.Args = append(append([]string{}, cmd.Args...), payload)
		if proc, err := startPTY(&ptyCmd, outF, errF); err == nil {
			return proc, nil
		}
	}

	cmd.Stdin = strings.NewReader(payload)
	cmd.Stdout = outF
	cmd.Stderr = errF
	setProcGroup(cmd)

	if err := cmd.Start(); err != nil {
		outF.Close()
		errF.Close()
		return nil, err
	}

	return &workerProc{
		wait: func() int { return exitCode(cmd.Wait()) },
		kill: func() { killGroup(cmd) },
		release: func() {
			outF.Close()
			errF.Close()
		},
	}, nil
}
