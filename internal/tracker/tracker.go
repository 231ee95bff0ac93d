// Package tracker is the issue/PR service boundary, backed by the gh CLI.
//
// The controller consumes the Service interface so its cycle logic can be
// tested against a fake; the real Client shells out to gh with per-call
// timeouts and retry with exponential backoff.
package tracker

import (
	"context"
	"time"
)

// Issue is one open issue as reported by the tracker.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Labels    []string  `json:"-"`
	Assignees []string  `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasLabel reports whether the issue carries the given label.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Assigned reports whether anyone is assigned to the issue.
func (i *Issue) Assigned() bool {
	return len(i.Assignees) > 0
}

// PullRequest is one open pull request awaiting review.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HeadRef string `json:"headRefName"`
	State   string `json:"state"`
	Merged  bool   `json:"-"`
}

// Service enumerates the tracker operations the task cycle needs. Query
// semantics (label filters, ordering) are the tracker's contract; autodev
// only issues queries and commands.
type Service interface {
	// ListReviewPRs returns open PRs carrying the review label.
	ListReviewPRs(ctx context.Context) ([]PullRequest, error)
	// ListOpenIssues returns open issues, oldest first. An empty label
	// means no label filter.
	ListOpenIssues(ctx context.Context, label string) ([]Issue, error)
	GetIssue(ctx context.Context, number int) (*Issue, error)
	GetPR(ctx context.Context, number int) (*PullRequest, error)
	AssignIssue(ctx context.Context, number int, assignee string) error
	AddIssueLabels(ctx context.Context, number int, labels ...string) error
	Comment(ctx context.Context, number int, body string) error
	CloseIssue(ctx context.Context, number int) error
	CommentOnPR(ctx context.Context, number int, body string) error
	// RemovePRLabel takes a label off a PR, e.g. the review label after a
	// review pass that did not merge.
	RemovePRLabel(ctx context.Context, number int, label string) error
}
