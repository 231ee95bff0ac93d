// Package prompt builds the payloads handed to the coding agent.
package prompt

import (
	"fmt"
	"strings"

	"github.com/silver2dream/autodev/internal/tracker"
)

// Triage asks the worker to judge an issue and answer with a machine
// readable verdict. The JSON contract here must stay in sync with what the
// extract package looks for.
func Triage(issue *tracker.Issue) string {
	b := strings.Builder{}
	b.WriteString("You are an automated coding agent triaging a GitHub issue.\n\n")
	b.WriteString("Investigate the repository and decide whether this issue is still\n")
	b.WriteString("relevant: reproduce it if you can, and check whether it was already\n")
	b.WriteString("fixed on the base branch.\n\n")
	b.WriteString("Issue:\n")
	b.WriteString(issueBlock(issue))
	b.WriteString("\nDo NOT change any files during triage.\n\n")
	b.WriteString("When you are done, output a single JSON object of this exact shape:\n")
	b.WriteString("{\"relevant\": true|false, \"reason\": \"<one sentence>\", \"plan\": \"<short implementation plan, empty if not relevant>\"}\n")
	return b.String()
}

// Implement asks the worker to carry out the triage plan inside its
// worktree and open a pull request.
func Implement(issue *tracker.Issue, plan, branch, baseBranch, reviewLabel string) string {
	b := strings.Builder{}
	b.WriteString("You are an automated coding agent working inside a dedicated git worktree.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Keep changes minimal and strictly within issue scope.\n")
	b.WriteString("- Run the project's build and tests before finishing.\n")
	fmt.Fprintf(&b, "- Commit on the current branch %s; do not switch branches.\n\n", branch)
	b.WriteString("Issue:\n")
	b.WriteString(issueBlock(issue))
	if plan != "" {
		b.WriteString("\nTriage plan:\n")
		b.WriteString(plan)
		b.WriteString("\n")
	}
	b.WriteString("\nWhen the change is complete:\n")
	b.WriteString("- Print: git status --porcelain\n")
	b.WriteString("- Commit the change with a message referencing the issue number.\n")
	fmt.Fprintf(&b, "- Push the branch and open a pull request against %s with the %q label, linking the issue.\n",
		baseBranch, reviewLabel)
	return b.String()
}

// Review asks the worker to review an open pull request and act on the
// verdict itself.
func Review(pr *tracker.PullRequest, baseBranch string) string {
	b := strings.Builder{}
	b.WriteString("You are an automated coding agent reviewing a pull request.\n\n")
	fmt.Fprintf(&b, "Pull request #%d: %s\n", pr.Number, pr.Title)
	if pr.Body != "" {
		b.WriteString("\n")
		b.WriteString(pr.Body)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nReview the diff against %s for correctness, test coverage and scope.\n", baseBranch)
	b.WriteString("Then act on your verdict:\n")
	b.WriteString("- If it is ready, approve and merge it.\n")
	b.WriteString("- If it needs work, leave a review comment listing the required changes.\n")
	b.WriteString("Do not rewrite the branch yourself.\n")
	return b.String()
}

func issueBlock(issue *tracker.Issue) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "#%d: %s\n", issue.Number, issue.Title)
	if issue.Body != "" {
		b.WriteString(issue.Body)
		b.WriteString("\n")
	}
	return b.String()
}
