package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/silver2dream/autodev/internal/config"
	"github.com/silver2dream/autodev/internal/controller"
	autoerrors "github.com/silver2dream/autodev/internal/errors"
	"github.com/silver2dream/autodev/internal/seenset"
	"github.com/silver2dream/autodev/internal/stream"
	"github.com/silver2dream/autodev/internal/tracker"
	"github.com/silver2dream/autodev/internal/workspace"
)

// runFlags holds the options shared by run and watch.
type runFlags struct {
	configPath   string
	iterations   int
	dryRun       bool
	model        string
	maxTurns     int
	timeout      time.Duration
	label        string
	issues       string
	parallel     int
	pollInterval time.Duration
	reviewersDir string
	skipTriage   bool
	stateRoot    string
	live         bool
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	o := &runFlags{}
	fs.StringVar(&o.configPath, "config", "", "")
	fs.IntVar(&o.iterations, "iterations", 1, "")
	fs.BoolVar(&o.dryRun, "dry-run", false, "")
	fs.StringVar(&o.model, "model", "", "")
	fs.IntVar(&o.maxTurns, "max-turns", 0, "")
	fs.DurationVar(&o.timeout, "timeout", 0, "")
	fs.StringVar(&o.label, "label", "", "")
	fs.StringVar(&o.issues, "issues", "", "")
	fs.IntVar(&o.parallel, "parallel", 0, "")
	fs.DurationVar(&o.pollInterval, "poll-interval", 0, "")
	fs.StringVar(&o.reviewersDir, "reviewers-dir", "", "")
	fs.BoolVar(&o.skipTriage, "skip-triage", false, "")
	fs.StringVar(&o.stateRoot, "state-root", "", "")
	fs.BoolVar(&o.live, "live", false, "")
	return o
}

// apply layers flag values over the loaded configuration.
func (o *runFlags) apply(cfg *config.Config) {
	if o.model != "" {
		cfg.Worker.Model = o.model
	}
	if o.maxTurns > 0 {
		cfg.Worker.MaxTurns = o.maxTurns
	}
	if o.timeout > 0 {
		cfg.Worker.Timeout = config.Duration(o.timeout)
	}
	if o.label != "" {
		cfg.Tracker.Labels = []string{o.label}
	}
	if o.parallel > 0 {
		cfg.Controller.Parallel = o.parallel
	}
	if o.pollInterval > 0 {
		cfg.Controller.PollInterval = config.Duration(o.pollInterval)
	}
	if o.reviewersDir != "" {
		cfg.Controller.ReviewersDir = o.reviewersDir
	}
	if o.skipTriage {
		cfg.Controller.SkipTriage = true
	}
	if o.stateRoot != "" {
		cfg.Controller.StateRoot = o.stateRoot
	}
}

// issueList parses the --issues value.
func (o *runFlags) issueList() ([]int, error) {
	if o.issues == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(o.issues, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid issue number %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// build assembles the controller and its collaborators from the merged
// configuration.
func (o *runFlags) build() (*controller.Controller, *config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	stateRoot := cfg.Controller.StateRoot
	if err := os.MkdirAll(stateRoot, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create state root: %w", err)
	}

	logger, err := setupLogger(stateRoot)
	if err != nil {
		return nil, nil, err
	}

	roles := stream.NewRegistry()
	if dir := cfg.Controller.ReviewersDir; dir != "" {
		if err := roles.LoadCustomRoles(dir); err != nil {
			logger.Warn("failed to load custom reviewer roles", "dir", dir, "error", err)
		}
	}

	renderer := stream.NewPlainRenderer()
	if o.live {
		renderer = stream.NewRenderer()
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}

	ctrl := controller.New(cfg, controller.Options{
		Tracker:    tracker.NewClient(cfg.Tracker.Timeout.Std(), cfg.Tracker.ReviewLabel),
		Seen:       seenset.New(filepath.Join(stateRoot, "seen.txt")),
		Workspaces: workspace.NewManager(repoRoot, cfg.Git.BaseBranch),
		Logger:     logger,
		Roles:      roles,
		Renderer:   renderer,
		Out:        os.Stdout,
		DryRun:     o.dryRun,
		Live:       o.live,
	})
	return ctrl, cfg, nil
}

// setupLogger writes structured logs to stderr and to a per-run file under
// the state root.
func setupLogger(stateRoot string) (*slog.Logger, error) {
	logDir := filepath.Join(stateRoot, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("autodev-%s.log", time.Now().UTC().Format("20060102-150405"))
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, f), nil)
	return slog.New(handler), nil
}

// signalContext cancels on SIGINT/SIGTERM; the controller observes it
// between task boundaries only.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = usageRun
	o := addRunFlags(fs)
	showHelp := fs.Bool("help", false, "")
	showHelpShort := fs.Bool("h", false, "")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showHelp || *showHelpShort {
		usageRun()
		return 0
	}

	issues, err := o.issueList()
	if err != nil {
		errorf("%v\n", err)
		return 2
	}

	ctrl, _, err := o.build()
	if err != nil {
		errorf("%v\n", err)
		return autoerrors.GetExitCode(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if o.live && !term.IsTerminal(int(os.Stdout.Fd())) {
		warn("stdout is not a terminal, live output will be plain\n")
	}

	err = ctrl.Run(ctx, o.iterations, issues)
	switch {
	case err == nil:
		success("batch complete\n")
		return 0
	case autoerrors.IsNoWork(err):
		fmt.Println("No work found.")
		return 0
	case autoerrors.IsDenied(err):
		errorf("%v\n", err)
		fmt.Fprintln(os.Stderr, "The worker hit a capability boundary; fix the allowed-tools configuration before rerunning.")
		return autoerrors.GetExitCode(err)
	default:
		errorf("%v\n", err)
		return autoerrors.GetExitCode(err)
	}
}

func usageRun() {
	fmt.Fprint(os.Stderr, `Process a batch of issues and review targets

Usage:
  autodev run [options]

Options:
  --config         Path to autodev.yaml
  --iterations     Number of task cycles to run [default: 1]
  --issues         Comma-separated issue numbers (overrides selection)
  --label          Only consider issues with this label
  --parallel       Max tasks in flight at once
  --model          Worker model override
  --max-turns      Worker turn budget override
  --timeout        Per-invocation wall-clock budget (e.g. 20m)
  --skip-triage    Go straight to implement
  --reviewers-dir  Directory with custom reviewer role definitions
  --state-root     Directory for seen-set, worktree and log state
  --dry-run        Show selection and prompts without running the worker
  --live           Stream worker events to stdout with role colors

Examples:
  autodev run
  autodev run --issues 12,34 --skip-triage
  autodev run --label bug --iterations 5 --parallel 2
`)
}
