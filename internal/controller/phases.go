package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	autoerrors "github.com/silver2dream/autodev/internal/errors"
	"github.com/silver2dream/autodev/internal/extract"
	"github.com/silver2dream/autodev/internal/prompt"
	"github.com/silver2dream/autodev/internal/stream"
	"github.com/silver2dream/autodev/internal/supervisor"
	"github.com/silver2dream/autodev/internal/tracker"
	"github.com/silver2dream/autodev/internal/workspace"
)

// notRelevantLabel marks issues closed by a negative triage verdict.
const notRelevantLabel = "not-relevant"

// selectTask picks the next unit of work. An explicit queue overrides the
// seen set entirely; otherwise review targets come first (reviews unblock
// merges), then the label priority walk, then the oldest unassigned issue
// with no label filter. The seen set is re-read from disk on every call.
func (c *Controller) selectTask(ctx context.Context, queue *[]int) (*Task, error) {
	if len(*queue) > 0 {
		number := (*queue)[0]
		*queue = (*queue)[1:]

		issue, err := c.tr.GetIssue(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch issue %d: %w", number, err)
		}
		task := &Task{Kind: KindIssue, Number: issue.Number, Title: issue.Title,
			Body: issue.Body, Phase: PhaseTriage, Outcome: OutcomePending}
		if !c.reserve(task) {
			return nil, fmt.Errorf("issue %d is already in flight", number)
		}
		return task, nil
	}

	prs, err := c.tr.ListReviewPRs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list review targets: %w", err)
	}
	for i := range prs {
		pr := &prs[i]
		task := &Task{Kind: KindReview, Number: pr.Number, Title: pr.Title,
			Body: pr.Body, HeadRef: pr.HeadRef, Phase: PhaseReview, Outcome: OutcomePending}
		if c.reserve(task) {
			return task, nil
		}
	}

	for _, label := range c.cfg.Tracker.Labels {
		if task, err := c.pickIssue(ctx, label); err != nil {
			return nil, err
		} else if task != nil {
			return task, nil
		}
	}

	if task, err := c.pickIssue(ctx, ""); err != nil {
		return nil, err
	} else if task != nil {
		return task, nil
	}

	return nil, autoerrors.NoWork
}

// pickIssue returns the oldest open issue with the label that is neither
// seen, assigned, nor in flight; nil when none qualifies.
func (c *Controller) pickIssue(ctx context.Context, label string) (*Task, error) {
	issues, err := c.tr.ListOpenIssues(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("failed to list open issues: %w", err)
	}
	for i := range issues {
		issue := &issues[i]
		if issue.Assigned() {
			continue
		}
		task := &Task{Kind: KindIssue, Number: issue.Number, Title: issue.Title,
			Body: issue.Body, Phase: PhaseTriage, Outcome: OutcomePending}
		seen, err := c.seen.Contains(task.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to read seen set: %w", err)
		}
		if seen {
			continue
		}
		if !c.reserve(task) {
			continue
		}
		return task, nil
	}
	return nil, nil
}

// runTask drives one task through its phases to a terminal or pending
// outcome. Only capability denial is returned as an error; other worker
// outcomes are absorbed into the task record.
func (c *Controller) runTask(ctx context.Context, task *Task) error {
	log := c.log.With("task", task.ID(), "title", task.Title)

	if c.dryRun {
		fmt.Fprintf(c.out, "[dry-run] selected %s: %s\n", task.ID(), task.Title)
		fmt.Fprintf(c.out, "[dry-run] would run phase %s\n", task.Phase)
		return nil
	}

	var err error
	switch task.Kind {
	case KindReview:
		err = c.runReview(ctx, task, log)
	default:
		err = c.runIssue(ctx, task, log)
	}
	if err != nil {
		return err
	}

	log.Info("task finished", "outcome", task.Outcome, "reason", task.Reason)
	return nil
}

// runIssue runs triage (unless skipped) and then implement for one issue.
func (c *Controller) runIssue(ctx context.Context, task *Task, log *slog.Logger) error {
	if err := c.tr.AssignIssue(ctx, task.Number, "@me"); err != nil {
		log.Warn("failed to assign issue", "error", err)
	}

	issue := &tracker.Issue{Number: task.Number, Title: task.Title, Body: task.Body}
	plan := ""

	if !c.cfg.Controller.SkipTriage {
		task.Phase = PhaseTriage
		log.Info("triaging issue")

		res, err := c.superviseWorker(ctx, fmt.Sprintf("triage-%d", task.Number), "", prompt.Triage(issue))
		if err != nil {
			return err
		}
		if done := c.absorb(task, res, log); done {
			return nil
		}

		verdict, ok := extract.Extract(res.Output())
		if !ok {
			// Conservative default: a lost verdict must not discard a
			// legitimate issue.
			log.Warn("no verdict found in triage output, assuming relevant")
			verdict = extract.Fallback()
		}
		if !verdict.Relevant {
			return c.closeNotRelevant(ctx, task, verdict.Reason, log)
		}
		plan = verdict.Plan
	}

	task.Phase = PhaseImplement
	ws, err := c.ws.Acquire(task.ID())
	if err != nil {
		return fmt.Errorf("failed to acquire workspace for %s: %w", task.ID(), err)
	}
	log.Info("implementing issue", "workspace", ws.Path, "branch", ws.Branch)

	payload := prompt.Implement(issue, plan, ws.Branch, c.baseBranch(), c.cfg.Tracker.ReviewLabel)
	res, err := c.superviseWorker(ctx, fmt.Sprintf("implement-%d", task.Number), ws.Path, payload)
	if err != nil {
		return err
	}
	if done := c.absorb(task, res, log); done {
		return nil
	}

	task.Outcome = OutcomeDone
	task.Reason = "implemented"
	c.markSeen(task, task.Reason)
	return nil
}

// runReview runs the review phase for one PR, then reconciles the
// associated workspace against the merge outcome.
func (c *Controller) runReview(ctx context.Context, task *Task, log *slog.Logger) error {
	log.Info("reviewing pull request")

	pr := &tracker.PullRequest{Number: task.Number, Title: task.Title,
		Body: task.Body, HeadRef: task.HeadRef}
	res, err := c.superviseWorker(ctx, fmt.Sprintf("review-%d", task.Number), "", prompt.Review(pr, c.baseBranch()))
	if err != nil {
		return err
	}
	if done := c.absorb(task, res, log); done {
		return nil
	}

	after, err := c.tr.GetPR(ctx, task.Number)
	if err != nil {
		return fmt.Errorf("failed to refresh pr %d: %w", task.Number, err)
	}

	if after.Merged {
		if key, ok := workspace.KeyForBranch(task.HeadRef); ok {
			// Lookup, not Acquire: when nothing survives for the key there
			// is nothing to tear down.
			if ws, exists := c.ws.Lookup(key); exists {
				if err := c.ws.Reconcile(ws, true); err != nil {
					log.Warn("failed to tear down merged workspace", "error", err)
				}
			}
		}
		task.Outcome = OutcomeDone
		task.Reason = "merged"
		c.markSeen(task, task.Reason)
		return nil
	}

	// Not merged: the worker left its change requests as a review. Pull
	// the review label so the PR is not re-picked until it is re-labeled.
	if err := c.tr.RemovePRLabel(ctx, task.Number, c.cfg.Tracker.ReviewLabel); err != nil {
		log.Warn("failed to remove review label", "error", err)
	}
	task.Outcome = OutcomeDone
	task.Reason = "changes requested"
	return nil
}

// closeNotRelevant records a negative triage verdict on the tracker and
// terminates the task without entering implement.
func (c *Controller) closeNotRelevant(ctx context.Context, task *Task, reason string, log *slog.Logger) error {
	log.Info("issue judged not relevant", "reason", reason)

	body := fmt.Sprintf("Automated triage closed this issue: %s", reason)
	if err := c.tr.Comment(ctx, task.Number, body); err != nil {
		log.Warn("failed to comment on issue", "error", err)
	}
	if err := c.tr.AddIssueLabels(ctx, task.Number, notRelevantLabel); err != nil {
		log.Warn("failed to label issue", "error", err)
	}
	if err := c.tr.CloseIssue(ctx, task.Number); err != nil {
		return fmt.Errorf("failed to close issue %d: %w", task.Number, err)
	}

	task.Outcome = OutcomeSkipped
	task.Reason = reason
	c.markSeen(task, "not relevant: "+reason)
	return nil
}

// absorb folds a finished invocation into the task record, reporting true
// when the task reached a state that ends the cycle. Denial never reaches
// here; superviseWorker surfaces it as an error first.
func (c *Controller) absorb(task *Task, res *supervisor.Result, log *slog.Logger) bool {
	switch res.State {
	case supervisor.StateCompleted:
		return false
	case supervisor.StateTimedOut:
		// Left pending: not added to the seen set, retried next cycle.
		task.Outcome = OutcomePending
		task.Reason = "timed out"
		log.Warn("invocation timed out, task left pending", "after", res.Duration)
		return true
	case supervisor.StateMaxTurns:
		task.Outcome = OutcomeSkipped
		task.Reason = "max turns reached"
		c.markSeen(task, task.Reason)
		log.Warn("worker ran out of turns")
		return true
	default:
		task.Outcome = OutcomeFailed
		task.Reason = fmt.Sprintf("worker failed with exit code %d", res.ExitCode)
		c.markSeen(task, task.Reason)
		log.Error("invocation failed", "exit_code", res.ExitCode, "logs", res.StdoutPath)
		return true
	}
}

// superviseWorker runs one invocation with the configured worker settings.
// A denied classification is converted to the error that aborts the run.
func (c *Controller) superviseWorker(ctx context.Context, name, dir, payload string) (*supervisor.Result, error) {
	w := c.cfg.Worker
	cfg := supervisor.Config{
		Command:      w.Command,
		Model:        w.Model,
		MaxTurns:     w.MaxTurns,
		AllowedTools: w.AllowedTools,
		Timeout:      w.Timeout.Std(),
		DonePattern:  w.DonePattern,
		GracePeriod:  w.GracePeriod.Std(),
		Dir:          dir,
		LogDir:       c.logDir(),
		Name:         name,
		UsePTY:       w.UsePTY,
	}

	if c.live {
		viewCtx, stopView := context.WithCancel(ctx)
		defer stopView()
		cfg.OnStart = func(sinkPath string) {
			go stream.View(viewCtx, sinkPath, c.roles, c.renderer, c.out)
		}
	}

	res, err := c.supervise(ctx, payload, cfg)
	if err != nil {
		return nil, fmt.Errorf("invocation %s failed to launch: %w", name, err)
	}
	if res.State == supervisor.StateDenied {
		return nil, autoerrors.NewDenied(fmt.Sprintf("invocation %s hit a capability boundary: %s",
			name, strings.Join(res.DeniedLines, "; ")))
	}
	return res, nil
}

func (c *Controller) baseBranch() string {
	return c.cfg.Git.BaseBranch
}
