package main

import (
	"flag"
	"fmt"
	"os"

	autoerrors "github.com/silver2dream/autodev/internal/errors"
)

func cmdWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = usageWatch
	o := addRunFlags(fs)
	showHelp := fs.Bool("help", false, "")
	showHelpShort := fs.Bool("h", false, "")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showHelp || *showHelpShort {
		usageWatch()
		return 0
	}

	if o.issues != "" {
		errorf("--issues is not supported in watch mode\n")
		return 2
	}

	ctrl, cfg, err := o.build()
	if err != nil {
		errorf("%v\n", err)
		return autoerrors.GetExitCode(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Watching for work (poll interval %s). %s to stop.\n",
		cyan(cfg.Controller.PollInterval.Std().String()), bold("Ctrl-C"))

	err = ctrl.Watch(ctx, o.iterations)
	if err != nil {
		errorf("%v\n", err)
		return autoerrors.GetExitCode(err)
	}
	success("stopped\n")
	return 0
}

func usageWatch() {
	fmt.Fprint(os.Stderr, `Keep polling for work until interrupted

Usage:
  autodev watch [options]

Options:
  --config         Path to autodev.yaml
  --poll-interval  Sleep between empty polls (e.g. 5m)
  --iterations     Task cycles per batch [default: 1]
  --label          Only consider issues with this label
  --parallel       Max tasks in flight at once
  --model          Worker model override
  --max-turns      Worker turn budget override
  --timeout        Per-invocation wall-clock budget (e.g. 20m)
  --skip-triage    Go straight to implement
  --reviewers-dir  Directory with custom reviewer role definitions
  --state-root     Directory for seen-set, worktree and log state
  --live           Stream worker events to stdout with role colors

Examples:
  autodev watch
  autodev watch --poll-interval 2m --live
`)
}
