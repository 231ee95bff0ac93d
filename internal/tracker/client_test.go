package tracker

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRawIssueToIssue(t *testing.T) {
	payload := `{
		"number": 42,
		"title": "Crash on empty config",
		"body": "Steps to reproduce...",
		"createdAt": "2026-08-01T10:00:00Z",
		"labels": [{"name": "bug"}, {"name": "needs-review"}],
		"assignees": [{"login": "octocat"}]
	}`

	var raw rawIssue
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issue := raw.toIssue()

	if issue.Number != 42 {
		t.Errorf("expected number 42, got %d", issue.Number)
	}
	if issue.Title != "Crash on empty config" {
		t.Errorf("unexpected title: %q", issue.Title)
	}
	if len(issue.Labels) != 2 || issue.Labels[0] != "bug" {
		t.Errorf("unexpected labels: %v", issue.Labels)
	}
	if !issue.Assigned() {
		t.Error("expected issue to be assigned")
	}
	if !issue.HasLabel("needs-review") {
		t.Error("expected HasLabel to find needs-review")
	}
	if issue.HasLabel("enhancement") {
		t.Error("did not expect enhancement label")
	}
	want := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if !issue.CreatedAt.Equal(want) {
		t.Errorf("expected createdAt %v, got %v", want, issue.CreatedAt)
	}
}

func TestRawIssueToIssueEmpty(t *testing.T) {
	var raw rawIssue
	issue := raw.toIssue()
	if issue.Assigned() {
		t.Error("empty issue should not be assigned")
	}
	if len(issue.Labels) != 0 {
		t.Errorf("expected no labels, got %v", issue.Labels)
	}
}

func TestPullRequestUnmarshal(t *testing.T) {
	payload := `[{"number": 7, "title": "Fix crash", "body": "", "headRefName": "autodev/issue-42", "state": "OPEN"}]`

	var prs []PullRequest
	if err := json.Unmarshal([]byte(payload), &prs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prs) != 1 {
		t.Fatalf("expected 1 pr, got %d", len(prs))
	}
	if prs[0].HeadRef != "autodev/issue-42" {
		t.Errorf("unexpected head ref: %q", prs[0].HeadRef)
	}
	if prs[0].Merged {
		t.Error("merged should default to false")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(0, "")
	if c.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", c.Timeout)
	}
	if c.ReviewLabel != "needs-review" {
		t.Errorf("expected default review label, got %q", c.ReviewLabel)
	}

	c = NewClient(5*time.Second, "ready")
	if c.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", c.Timeout)
	}
	if c.ReviewLabel != "ready" {
		t.Errorf("expected review label ready, got %q", c.ReviewLabel)
	}
}
