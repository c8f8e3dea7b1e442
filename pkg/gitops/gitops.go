// Package gitops wraps the git operations the update orchestrator
// needs: working-tree safety checks and committing rewritten
// manifests. Commands run through an injectable Runner so tests never
// need a real repository.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Safety violations. Each one blocks a mutation unless forced.
var (
	ErrNotARepo     = errors.New("not a git repository")
	ErrWrongBranch  = errors.New("not on the main branch")
	ErrDirtyTree    = errors.New("working tree has uncommitted changes")
	ErrUnpushed     = errors.New("branch has unpushed commits")
	ErrNothingToAdd = errors.New("no files to commit")
)

// Runner executes a git command in dir and returns its stdout.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// ExecRunner shells out to the git binary.
func ExecRunner(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Git runs repository operations rooted at a working directory.
type Git struct {
	run Runner
}

// New creates a Git helper. A nil runner uses the git binary.
func New(run Runner) *Git {
	if run == nil {
		run = ExecRunner
	}
	return &Git{run: run}
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotARepo, err)
	}
	return strings.TrimSpace(out), nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func (g *Git) IsClean(ctx context.Context, dir string) (bool, error) {
	out, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrNotARepo, err)
	}
	return strings.TrimSpace(out) == "", nil
}

// UnpushedCount returns how many local commits are ahead of the
// upstream. A branch with no upstream configured counts as zero; there
// is nothing to diverge from.
func (g *Git) UnpushedCount(ctx context.Context, dir string) (int, error) {
	out, err := g.run(ctx, dir, "rev-list", "--count", "@{u}..HEAD")
	if err != nil {
		if strings.Contains(err.Error(), "no upstream") || strings.Contains(err.Error(), "upstream") {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parsing rev-list output %q: %w", out, err)
	}
	return n, nil
}

// mainBranches are the branch names a repository may safely mutate on.
var mainBranches = []string{"main", "master"}

// CheckSafe verifies the repository is in a state where automated
// edits are acceptable: on a main branch, clean tree, nothing
// unpushed. The first violation found is returned.
func (g *Git) CheckSafe(ctx context.Context, dir string) error {
	branch, err := g.CurrentBranch(ctx, dir)
	if err != nil {
		return err
	}
	onMain := false
	for _, b := range mainBranches {
		if branch == b {
			onMain = true
			break
		}
	}
	if !onMain {
		return fmt.Errorf("%w: on %q", ErrWrongBranch, branch)
	}

	clean, err := g.IsClean(ctx, dir)
	if err != nil {
		return err
	}
	if !clean {
		return ErrDirtyTree
	}

	ahead, err := g.UnpushedCount(ctx, dir)
	if err != nil {
		return err
	}
	if ahead > 0 {
		return fmt.Errorf("%w: %d ahead", ErrUnpushed, ahead)
	}
	return nil
}

// Commit stages the given paths and records a commit with message.
func (g *Git) Commit(ctx context.Context, dir, message string, paths ...string) error {
	if len(paths) == 0 {
		return ErrNothingToAdd
	}
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, dir, args...); err != nil {
		return err
	}
	_, err := g.run(ctx, dir, "commit", "-m", message)
	return err
}

// Push publishes the current branch to its upstream.
func (g *Git) Push(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "push")
	return err
}
