package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initRepo creates a git repository with one commit on main.
func initRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init", "-b", "main")
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-m", "initial commit")
	return root
}

func TestAcquireCreatesWorktree(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	ws, err := m.Acquire("issue-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ws.Reused {
		t.Error("fresh workspace must not be marked reused")
	}
	if ws.Branch != "autodev/issue-42" {
		t.Errorf("unexpected branch %q", ws.Branch)
	}
	info, err := os.Stat(ws.Path)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected worktree directory at %s", ws.Path)
	}
	if _, err := os.Stat(filepath.Join(ws.Path, "README.md")); err != nil {
		t.Errorf("worktree missing checked-out content: %v", err)
	}
}

func TestAcquireIdempotent(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	first, err := m.Acquire("issue-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Acquire("issue-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Path != second.Path {
		t.Errorf("expected same path, got %q and %q", first.Path, second.Path)
	}
	if !second.Reused {
		t.Error("second acquire must be marked reused")
	}
}

func TestAcquireReattachesExistingBranch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	// Branch exists from an earlier run but no worktree is attached.
	cmd := exec.Command("git", "branch", "autodev/issue-9", "main")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git branch: %v\n%s", err, out)
	}

	ws, err := m.Acquire("issue-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ws.Reused {
		t.Error("re-attached workspace must be marked reused")
	}
	if _, err := os.Stat(ws.Path); err != nil {
		t.Errorf("expected worktree at %s: %v", ws.Path, err)
	}
}

func TestLookupFindsOnlyExistingState(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	if _, ok := m.Lookup("issue-13"); ok {
		t.Fatal("lookup must not find a workspace that was never created")
	}
	if _, err := os.Stat(m.PathFor("issue-13")); !os.IsNotExist(err) {
		t.Error("lookup must not create the worktree directory")
	}
	if m.branchExists(m.BranchFor("issue-13")) {
		t.Error("lookup must not create the branch")
	}

	acquired, err := m.Acquire("issue-13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found, ok := m.Lookup("issue-13")
	if !ok {
		t.Fatal("expected lookup to find the acquired workspace")
	}
	if found.Path != acquired.Path || found.Branch != acquired.Branch {
		t.Errorf("lookup returned %+v, acquire returned %+v", found, acquired)
	}
}

func TestLookupFindsSurvivingBranch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	// Branch exists from an earlier run but no worktree is attached.
	cmd := exec.Command("git", "branch", "autodev/issue-14", "main")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git branch: %v\n%s", err, out)
	}

	ws, ok := m.Lookup("issue-14")
	if !ok {
		t.Fatal("expected lookup to find the surviving branch")
	}
	if ws.Branch != "autodev/issue-14" {
		t.Errorf("unexpected branch %q", ws.Branch)
	}
	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Error("lookup must not attach a worktree")
	}
}

func TestReconcileMergedRemovesEverything(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	ws, err := m.Acquire("issue-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Reconcile(ws, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Error("expected worktree to be removed")
	}
	if m.branchExists(ws.Branch) {
		t.Error("expected branch to be deleted")
	}
}

func TestReconcileOpenLeavesWorkspace(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	ws, err := m.Acquire("issue-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Reconcile(ws, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(ws.Path); err != nil {
		t.Error("open task's workspace must remain intact")
	}
	if !m.branchExists(ws.Branch) {
		t.Error("open task's branch must remain")
	}
}

func TestReconcileMergedWithLeftoverNestedState(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := initRepo(t)
	m := NewManager(root, "main")

	ws, err := m.Acquire("issue-11")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate a dependency cache the worker left behind.
	cache := filepath.Join(ws.Path, "node_modules", "dep")
	if err := os.MkdirAll(cache, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cache, "blob.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.Reconcile(ws, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Error("expected worktree with nested state to be removed")
	}
}
