// Package controller drives the task cycle: select a unit of work, run the
// worker through its phases, reconcile the workspace, then advance or sleep.
package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/silver2dream/autodev/internal/config"
	autoerrors "github.com/silver2dream/autodev/internal/errors"
	"github.com/silver2dream/autodev/internal/seenset"
	"github.com/silver2dream/autodev/internal/stream"
	"github.com/silver2dream/autodev/internal/supervisor"
	"github.com/silver2dream/autodev/internal/tracker"
	"github.com/silver2dream/autodev/internal/workspace"
)

// Kind distinguishes issue work from review work.
type Kind string

const (
	KindIssue  Kind = "issue"
	KindReview Kind = "review"
)

// Phase is the stage a task is currently in.
type Phase string

const (
	PhaseTriage    Phase = "triage"
	PhaseImplement Phase = "implement"
	PhaseReview    Phase = "review"
)

// Outcome is a task's terminal (or pending) result.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Task is one unit of queued work tracked through phases.
type Task struct {
	Kind    Kind
	Number  int
	Title   string
	Body    string
	HeadRef string

	Phase   Phase
	Outcome Outcome
	Reason  string
}

// ID is the seen-set identifier for the task.
func (t *Task) ID() string {
	if t.Kind == KindReview {
		return fmt.Sprintf("pr-%d", t.Number)
	}
	return fmt.Sprintf("issue-%d", t.Number)
}

// SuperviseFunc launches one worker invocation; injectable for tests.
type SuperviseFunc func(ctx context.Context, payload string, cfg supervisor.Config) (*supervisor.Result, error)

// Options wires the controller's collaborators.
type Options struct {
	Tracker    tracker.Service
	Seen       *seenset.Set
	Workspaces *workspace.Manager
	// Supervise defaults to supervisor.Supervise.
	Supervise SuperviseFunc
	Logger    *slog.Logger
	Roles     *stream.Registry
	Renderer  *stream.Renderer
	// Out receives live stream output and dry-run previews.
	Out    io.Writer
	DryRun bool
	Live   bool
}

// Controller owns one run, sequential or bounded-parallel.
type Controller struct {
	cfg       *config.Config
	tr        tracker.Service
	seen      *seenset.Set
	ws        *workspace.Manager
	supervise SuperviseFunc
	log       *slog.Logger
	roles     *stream.Registry
	renderer  *stream.Renderer
	out       io.Writer
	dryRun    bool
	live      bool

	// mu guards the seen set and the inflight map; both are shared by
	// parallel task goroutines.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// New builds a Controller. Nil optional collaborators get defaults.
func New(cfg *config.Config, opts Options) *Controller {
	c := &Controller{
		cfg:       cfg,
		tr:        opts.Tracker,
		seen:      opts.Seen,
		ws:        opts.Workspaces,
		supervise: opts.Supervise,
		log:       opts.Logger,
		roles:     opts.Roles,
		renderer:  opts.Renderer,
		out:       opts.Out,
		dryRun:    opts.DryRun,
		live:      opts.Live,
		inflight:  make(map[string]struct{}),
	}
	if c.supervise == nil {
		c.supervise = supervisor.Supervise
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.roles == nil {
		c.roles = stream.NewRegistry()
	}
	if c.renderer == nil {
		c.renderer = stream.NewPlainRenderer()
	}
	if c.out == nil {
		c.out = os.Stdout
	}
	return c
}

// Run executes up to iterations task cycles. An explicit number list
// overrides selection (and the seen set) for issue tasks. Returns
// errors.NoWork when no cycle found anything to do; a capability denial
// cancels in-flight work and aborts the run.
func (c *Controller) Run(ctx context.Context, iterations int, explicit []int) error {
	if iterations <= 0 {
		iterations = 1
	}
	queue := append([]int(nil), explicit...)
	if len(queue) > iterations {
		iterations = len(queue)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	parallel := c.cfg.Controller.Parallel
	if parallel < 1 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var runErr error
	ran := 0

	for i := 0; i < iterations; i++ {
		if runCtx.Err() != nil {
			break
		}

		task, err := c.selectTask(runCtx, &queue)
		if err != nil {
			if autoerrors.IsNoWork(err) {
				break
			}
			errMu.Lock()
			if runErr == nil {
				runErr = err
			}
			errMu.Unlock()
			break
		}
		ran++

		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			c.release(task)
			wg.Wait()
			return runErr
		}

		wg.Add(1)
		go func(task *Task) {
			defer wg.Done()
			defer func() { <-sem }()
			defer c.release(task)

			if err := c.runTask(runCtx, task); err != nil {
				errMu.Lock()
				if runErr == nil {
					runErr = err
				}
				errMu.Unlock()
				if autoerrors.IsDenied(err) {
					// Policy violation: stop everything.
					cancel()
				}
			}
		}(task)
	}

	wg.Wait()

	if runErr != nil {
		return runErr
	}
	if ran == 0 {
		return autoerrors.NoWork
	}
	return nil
}

// Watch repeats single batches until the context ends, sleeping the poll
// interval whenever a batch finds no work. Signals are delivered through
// context cancellation, checked only between task boundaries.
func (c *Controller) Watch(ctx context.Context, iterations int) error {
	interval := c.cfg.Controller.PollInterval.Std()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	for {
		err := c.Run(ctx, iterations, nil)
		switch {
		case err == nil:
			// Work was done; look again immediately.
			continue
		case autoerrors.IsNoWork(err):
			c.log.Info("no work found, sleeping", "interval", interval)
		case autoerrors.IsDenied(err):
			return err
		default:
			c.log.Error("batch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// release drops the task's in-flight reservation.
func (c *Controller) release(task *Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, task.ID())
	delete(c.inflight, c.workspaceKey(task))
}

// reserve marks the task and its workspace key in flight; reports whether
// the reservation was free.
func (c *Controller) reserve(task *Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[task.ID()]; busy {
		return false
	}
	if _, busy := c.inflight[c.workspaceKey(task)]; busy {
		return false
	}
	c.inflight[task.ID()] = struct{}{}
	c.inflight[c.workspaceKey(task)] = struct{}{}
	return true
}

// workspaceKey derives the workspace identity a task would use. Review
// tasks map back to the issue workspace when the branch follows the
// workspace naming scheme, so an implement and its review never run at
// the same time.
func (c *Controller) workspaceKey(task *Task) string {
	if task.Kind == KindReview && task.HeadRef != "" {
		if key, ok := workspace.KeyForBranch(task.HeadRef); ok {
			return key
		}
	}
	return task.ID()
}

// markSeen records a terminal task in the seen set.
func (c *Controller) markSeen(task *Task, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.seen.Add(task.ID(), reason); err != nil {
		c.log.Error("failed to record seen task", "task", task.ID(), "error", err)
	}
}

// logDir is where invocation sinks land.
func (c *Controller) logDir() string {
	return filepath.Join(c.cfg.Controller.StateRoot, "logs")
}
