package prompt

import (
	"strings"
	"testing"

	"github.com/silver2dream/autodev/internal/tracker"
)

func TestTriage(t *testing.T) {
	issue := &tracker.Issue{Number: 42, Title: "crash on empty input", Body: "panics when stdin is empty"}
	got := Triage(issue)

	for _, want := range []string{
		"#42: crash on empty input",
		"panics when stdin is empty",
		`{"relevant": true|false`,
		"Do NOT change any files",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected triage prompt to contain %q", want)
		}
	}
}

func TestImplement(t *testing.T) {
	issue := &tracker.Issue{Number: 7, Title: "add retry"}
	got := Implement(issue, "wrap the call in a retry loop", "autodev/issue-7", "main", "needs-review")

	for _, want := range []string{
		"#7: add retry",
		"wrap the call in a retry loop",
		"autodev/issue-7",
		`against main with the "needs-review" label`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected implement prompt to contain %q", want)
		}
	}
}

func TestImplementWithoutPlan(t *testing.T) {
	issue := &tracker.Issue{Number: 7, Title: "add retry"}
	got := Implement(issue, "", "autodev/issue-7", "main", "needs-review")
	if strings.Contains(got, "Triage plan") {
		t.Error("expected no triage plan section when plan is empty")
	}
}

func TestReview(t *testing.T) {
	pr := &tracker.PullRequest{Number: 12, Title: "fix retry loop", Body: "closes #7"}
	got := Review(pr, "main")

	for _, want := range []string{
		"Pull request #12: fix retry loop",
		"closes #7",
		"approve and merge",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected review prompt to contain %q", want)
		}
	}
}
