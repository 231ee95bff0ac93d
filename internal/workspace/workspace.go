// Package workspace manages isolated, branch-scoped git checkouts.
//
// Each task gets one worktree under .worktrees/<key> on its own branch. A
// workspace is exclusively owned by its task's invocation chain for the
// task's lifetime and is only torn down once the task reaches a terminal
// merged or abandoned outcome, so interrupted tasks can resume.
package workspace

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	autoerrors "github.com/silver2dream/autodev/internal/errors"
)

// branchPrefix namespaces every workspace branch.
const branchPrefix = "autodev/"

// Workspace is one isolated checkout associated with a task.
type Workspace struct {
	Key    string
	Path   string
	Branch string
	Reused bool
}

// Manager creates, reuses, and tears down workspaces for one repository.
// Mutating operations are serialized: parallel tasks own distinct worktrees,
// but creating or removing one touches the shared repository.
type Manager struct {
	root       string
	baseBranch string
	remote     string

	mu sync.Mutex
}

// NewManager creates a Manager for the repository at root.
func NewManager(root, baseBranch string) *Manager {
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &Manager{root: root, baseBranch: baseBranch, remote: "origin"}
}

// PathFor returns the canonical worktree path for a task key.
func (m *Manager) PathFor(key string) string {
	return filepath.Join(m.root, ".worktrees", key)
}

// BranchFor returns the branch name for a task key.
func (m *Manager) BranchFor(key string) string {
	return branchPrefix + key
}

// KeyForBranch maps a workspace branch name back to its key; ok is false
// for branches that were not created by a Manager.
func KeyForBranch(branch string) (string, bool) {
	if !strings.HasPrefix(branch, branchPrefix) {
		return "", false
	}
	return strings.TrimPrefix(branch, branchPrefix), true
}

// Lookup returns the workspace for a task key only if state for it already
// exists, either a worktree at the canonical path or a surviving branch.
// Unlike Acquire it never creates anything, so teardown paths can use it
// without conjuring a fresh checkout just to destroy it.
func (m *Manager) Lookup(key string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.PathFor(key)
	branch := m.BranchFor(key)

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return &Workspace{Key: key, Path: path, Branch: branch, Reused: true}, true
	}
	if m.branchExists(branch) {
		return &Workspace{Key: key, Path: path, Branch: branch, Reused: true}, true
	}
	return nil, false
}

// Acquire returns the workspace for a task key, creating it if needed.
//
// Idempotent per key: an existing worktree at the canonical path is reused
// (supports resuming interrupted tasks); an existing branch without a live
// worktree is re-attached; otherwise a fresh checkout is created on a new
// branch from the latest upstream tip.
func (m *Manager) Acquire(key string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.PathFor(key)
	branch := m.BranchFor(key)
	ws := &Workspace{Key: key, Path: path, Branch: branch}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		ws.Reused = true
		return ws, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, autoerrors.NewResource("failed to create worktrees directory", err)
	}

	if m.branchExists(branch) {
		// Branch survives from an earlier run; re-attach a worktree to it.
		if err := m.git("worktree", "add", path, branch); err != nil {
			return nil, autoerrors.NewResource(
				fmt.Sprintf("failed to re-attach worktree for %s", key), err)
		}
		ws.Reused = true
		return ws, nil
	}

	base := m.fetchBase()
	if err := m.git("branch", branch, base); err != nil {
		return nil, autoerrors.NewResource(
			fmt.Sprintf("failed to create branch %s", branch), err)
	}
	if err := m.git("worktree", "add", path, branch); err != nil {
		_ = m.git("branch", "-D", branch)
		return nil, autoerrors.NewResource(
			fmt.Sprintf("failed to create worktree for %s", key), err)
	}
	return ws, nil
}

// Reconcile finalizes a workspace once the task's merge outcome is known.
// A merged task's worktree and local branch are removed; an open task keeps
// both for the next cycle. Removal failures are reported but must be treated
// as non-fatal by callers: stale workspaces accumulate without blocking new
// tasks since keys are unique per branch.
func (m *Manager) Reconcile(ws *Workspace, merged bool) error {
	if !merged {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.remove(ws.Path); err != nil {
		return autoerrors.NewResource(
			fmt.Sprintf("failed to remove workspace %s", ws.Key), err)
	}

	if m.branchExists(ws.Branch) {
		if err := m.git("branch", "-D", ws.Branch); err != nil {
			return autoerrors.NewResource(
				fmt.Sprintf("failed to delete branch %s", ws.Branch), err)
		}
	}
	return nil
}

// remove deletes a worktree. git refuses worktrees with leftover nested
// state (dependency caches and the like), so a forced recursive removal plus
// prune is the fallback after the structured removal attempt.
func (m *Manager) remove(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = m.git("worktree", "prune")
		return nil
	}

	if err := m.git("worktree", "remove", "--force", path); err == nil {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return m.git("worktree", "prune")
}

// fetchBase refreshes the base branch from upstream and returns the ref to
// branch from. An unreachable remote falls back to the local base branch.
func (m *Manager) fetchBase() string {
	if err := m.git("fetch", m.remote, m.baseBranch); err == nil {
		return m.remote + "/" + m.baseBranch
	}
	return m.baseBranch
}

func (m *Manager) branchExists(branch string) bool {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = m.root
	return cmd.Run() == nil
}

func (m *Manager) git(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = m.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}
