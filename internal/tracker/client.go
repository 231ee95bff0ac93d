package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Client implements Service on top of the gh CLI.
type Client struct {
	Timeout     time.Duration
	ReviewLabel string
	retry       RetryConfig
}

// NewClient creates a gh-backed Client.
func NewClient(timeout time.Duration, reviewLabel string) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if reviewLabel == "" {
		reviewLabel = "needs-review"
	}
	return &Client{Timeout: timeout, ReviewLabel: reviewLabel, retry: DefaultRetryConfig()}
}

// run executes one gh invocation under the client timeout with retry.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	return runWithRetry(ctx, c.retry, "gh", args...)
}

// rawIssue matches gh's issue JSON shape.
type rawIssue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Assignees []struct {
		Login string `json:"login"`
	} `json:"assignees"`
}

func (r *rawIssue) toIssue() Issue {
	issue := Issue{
		Number:    r.Number,
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}
	for _, l := range r.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	for _, a := range r.Assignees {
		issue.Assignees = append(issue.Assignees, a.Login)
	}
	return issue
}

// ListOpenIssues returns open issues, oldest first.
func (c *Client) ListOpenIssues(ctx context.Context, label string) ([]Issue, error) {
	args := []string{"issue", "list", "--state", "open", "--limit", "200",
		"--json", "number,title,body,labels,assignees,createdAt"}
	if label != "" {
		args = append(args, "--label", label)
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("gh issue list failed: %w", err)
	}

	var raw []rawIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse issue list: %w", err)
	}

	issues := make([]Issue, 0, len(raw))
	for i := range raw {
		issues = append(issues, raw[i].toIssue())
	}
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].CreatedAt.Before(issues[j].CreatedAt)
	})
	return issues, nil
}

// GetIssue fetches one issue.
func (c *Client) GetIssue(ctx context.Context, number int) (*Issue, error) {
	out, err := c.run(ctx, "issue", "view", fmt.Sprintf("%d", number),
		"--json", "number,title,body,labels,assignees,createdAt")
	if err != nil {
		return nil, fmt.Errorf("gh issue view failed: %w", err)
	}

	var raw rawIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse issue: %w", err)
	}
	issue := raw.toIssue()
	return &issue, nil
}

// ListReviewPRs returns open PRs carrying the review label.
func (c *Client) ListReviewPRs(ctx context.Context) ([]PullRequest, error) {
	out, err := c.run(ctx, "pr", "list", "--state", "open",
		"--label", c.ReviewLabel, "--limit", "50",
		"--json", "number,title,body,headRefName,state")
	if err != nil {
		return nil, fmt.Errorf("gh pr list failed: %w", err)
	}

	var prs []PullRequest
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("failed to parse pr list: %w", err)
	}
	return prs, nil
}

// GetPR fetches one pull request, including its merged state.
func (c *Client) GetPR(ctx context.Context, number int) (*PullRequest, error) {
	out, err := c.run(ctx, "pr", "view", fmt.Sprintf("%d", number),
		"--json", "number,title,body,headRefName,state,mergedAt")
	if err != nil {
		return nil, fmt.Errorf("gh pr view failed: %w", err)
	}

	var raw struct {
		PullRequest
		MergedAt *time.Time `json:"mergedAt"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pr: %w", err)
	}
	pr := raw.PullRequest
	pr.Merged = raw.MergedAt != nil
	return &pr, nil
}

// AssignIssue assigns an issue. Use "@me" for the authenticated account.
func (c *Client) AssignIssue(ctx context.Context, number int, assignee string) error {
	_, err := c.run(ctx, "issue", "edit", fmt.Sprintf("%d", number),
		"--add-assignee", assignee)
	if err != nil {
		return fmt.Errorf("gh issue edit failed: %w", err)
	}
	return nil
}

// AddIssueLabels adds labels to an issue.
func (c *Client) AddIssueLabels(ctx context.Context, number int, labels ...string) error {
	_, err := c.run(ctx, "issue", "edit", fmt.Sprintf("%d", number),
		"--add-label", strings.Join(labels, ","))
	if err != nil {
		return fmt.Errorf("gh issue edit failed: %w", err)
	}
	return nil
}

// Comment adds a comment to an issue.
func (c *Client) Comment(ctx context.Context, number int, body string) error {
	_, err := c.run(ctx, "issue", "comment", fmt.Sprintf("%d", number),
		"--body", body)
	if err != nil {
		return fmt.Errorf("gh issue comment failed: %w", err)
	}
	return nil
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, number int) error {
	_, err := c.run(ctx, "issue", "close", fmt.Sprintf("%d", number))
	if err != nil {
		return fmt.Errorf("gh issue close failed: %w", err)
	}
	return nil
}

// CommentOnPR adds a comment to a pull request.
func (c *Client) CommentOnPR(ctx context.Context, number int, body string) error {
	_, err := c.run(ctx, "pr", "comment", fmt.Sprintf("%d", number),
		"--body", body)
	if err != nil {
		return fmt.Errorf("gh pr comment failed: %w", err)
	}
	return nil
}

// RemovePRLabel removes a label from a pull request.
func (c *Client) RemovePRLabel(ctx context.Context, number int, label string) error {
	_, err := c.run(ctx, "pr", "edit", fmt.Sprintf("%d", number),
		"--remove-label", label)
	if err != nil {
		return fmt.Errorf("gh pr edit failed: %w", err)
	}
	return nil
}
