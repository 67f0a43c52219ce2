// Package gitutil resolves the effective project root for the invoking
// agent and wraps the git operations the Workflow Driver and Commit
// Applier need. Adapted from BeadsLog's
// internal/git.WorktreeManager, generalized from that package's single
// fixed "beads" branch/sparse-checkout convention to an arbitrary
// "<repo>-worktrees/<key>/" naming scheme with no sparse checkout (agents
// need the full tree, not just one subdirectory).
package gitutil

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/procexec"
)

// DefaultTimeout is the default bound on any single git invocation.
const DefaultTimeout = 30 * time.Second

var worktreeDirRE = regexp.MustCompile(`-worktrees/([^/]+)(/|$)`)

// ResolvedRoot is the effective project root an operation should scope its
// file I/O to.
type ResolvedRoot struct {
	Path         string // absolute path to the effective root
	IsWorktree   bool
	WorktreeKey  string // the "<key>" component of "…-worktrees/<key>/", if IsWorktree
	MainRepoRoot string // the main checkout's root, even when IsWorktree
}

// Manager wraps git invocations rooted at repoPath (the main checkout).
type Manager struct {
	repoPath string
	timeout  time.Duration
}

// NewManager constructs a Manager for the main repository at repoPath.
func NewManager(repoPath string) *Manager {
	return &Manager{repoPath: repoPath, timeout: DefaultTimeout}
}

// RepoPath returns the main checkout path this Manager was constructed
// with, used as the fallback root when a function has no recorded
// worktree yet.
func (m *Manager) RepoPath() string { return m.repoPath }

// ResolveRoot inspects cwd and returns the effective root an operation
// invoked there should use: the containing worktree if cwd sits under a
// "…-worktrees/<key>/" directory, else the top level of the checkout that
// contains cwd.
func ResolveRoot(ctx context.Context, cwd string) (*ResolvedRoot, error) {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, err
	}

	toplevel, err := procexec.Run(ctx, DefaultTimeout, abs, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, errs.Precondition("gitutil: %s is not inside a git checkout", abs)
	}
	root := strings.TrimSpace(toplevel.Stdout)

	if m := worktreeDirRE.FindStringSubmatch(filepath.ToSlash(root)); m != nil {
		commonDir, err := procexec.Run(ctx, DefaultTimeout, root, "git", "rev-parse", "--git-common-dir")
		if err != nil {
			return nil, err
		}
		mainRoot := filepath.Dir(strings.TrimSpace(commonDir.Stdout))
		return &ResolvedRoot{Path: root, IsWorktree: true, WorktreeKey: m[1], MainRepoRoot: mainRoot}, nil
	}

	return &ResolvedRoot{Path: root, IsWorktree: false, MainRepoRoot: root}, nil
}

// EnsureWorktree creates (or reuses, after a health check) a worktree for
// branch at worktreePath, following the "<repo>-worktrees/<key>/" naming
// convention.
func (m *Manager) EnsureWorktree(ctx context.Context, branch, worktreePath string) error {
	_, _ = procexec.Run(ctx, m.timeout, m.repoPath, "git", "worktree", "prune")

	if m.isHealthyWorktree(ctx, worktreePath) {
		return nil
	}

	branchExists := m.branchExists(ctx, branch)
	var err error
	if branchExists {
		_, err = procexec.Run(ctx, m.timeout, m.repoPath, "git", "worktree", "add", "-f", worktreePath, branch)
	} else {
		_, err = procexec.Run(ctx, m.timeout, m.repoPath, "git", "worktree", "add", "-f", "-b", branch, worktreePath)
	}
	if err != nil {
		return err
	}
	return nil
}

// RemoveWorktree removes worktreePath via `git worktree remove --force`.
func (m *Manager) RemoveWorktree(ctx context.Context, worktreePath string) error {
	_, err := procexec.Run(ctx, m.timeout, m.repoPath, "git", "worktree", "remove", worktreePath, "--force")
	return err
}

func (m *Manager) isHealthyWorktree(ctx context.Context, worktreePath string) bool {
	listing, err := procexec.Run(ctx, m.timeout, m.repoPath, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(worktreePath)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(listing.Stdout, "\n") {
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			if samePath(strings.TrimSpace(path), abs) {
				return true
			}
		}
	}
	return false
}

func (m *Manager) branchExists(ctx context.Context, branch string) bool {
	if _, err := procexec.Run(ctx, m.timeout, m.repoPath, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch); err == nil {
		return true
	}
	_, err := procexec.Run(ctx, m.timeout, m.repoPath, "git", "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	return err == nil
}

func samePath(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil {
		ra = a
	}
	if errB != nil {
		rb = b
	}
	return ra == rb
}

// CheckoutPath restores path to its committed state (used by the Commit
// Applier on a verify failure).
func (m *Manager) CheckoutPath(ctx context.Context, root, path string) error {
	_, err := procexec.Run(ctx, m.timeout, root, "git", "checkout", "HEAD", "--", path)
	return err
}

// CommitPaths stages paths and commits them with message, returning the
// resulting commit hash.
func (m *Manager) CommitPaths(ctx context.Context, root, message string, paths []string) (string, error) {
	addArgs := append([]string{"add"}, paths...)
	if _, err := procexec.Run(ctx, m.timeout, root, "git", addArgs...); err != nil {
		return "", err
	}
	if _, err := procexec.Run(ctx, m.timeout, root, "git", "commit", "-m", message); err != nil {
		return "", err
	}
	hash, err := procexec.Run(ctx, m.timeout, root, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(hash.Stdout), nil
}

// CurrentBranch returns the checked-out branch name at root.
func (m *Manager) CurrentBranch(ctx context.Context, root string) (string, error) {
	res, err := procexec.Run(ctx, m.timeout, root, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
