//go:build windows

package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/UserExistsError/conpty"
	"golang.org/x/sys/windows"
)

// startPTY starts the worker under a Windows pseudo console and pumps its
// combined output into the stdout sink. ConPTY merges stdout and stderr
// into a single stream, same as the Unix pty path.
func startPTY(cmd *exec.Cmd, outF, errF *os.File) (*workerProc, error) {
	line := windows.ComposeCommandLine(cmd.Args)
	var opts []conpty.ConPtyOption
	if cmd.Dir != "" {
		opts = append(opts, conpty.ConPtyWorkDir(cmd.Dir))
	}
	cpty, err := conpty.Start(line, opts...)
	if err != nil {
		// Caller falls back to pipe mode with the same sink handles.
		return nil, err
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		_, _ = io.Copy(outF, cpty)
	}()

	waitCtx, cancelWait := context.WithCancel(context.Background())

	return &workerProc{
		wait: func() int {
			code, err := cpty.Wait(waitCtx)
			if err != nil {
				return 1
			}
			return int(code)
		},
		kill: func() {
			cancelWait()
			_ = cpty.Close()
		},
		release: func() {
			cancelWait()
			_ = cpty.Close()
			<-pumpDone
			outF.Close()
			errF.Close()
		},
	}, nil
}
