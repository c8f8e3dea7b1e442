// Package update applies safe dependency bumps to repository
// manifests, guarded by git safety checks.
//
// Only declarations the snapshot classifies as safe are ever touched;
// breaking and unknown updates require a human. Edits are line
// targeted so manifests keep their formatting and comments.
package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/depscope/depscope/pkg/gitops"
	"github.com/depscope/depscope/pkg/snapshot"
)

// Outcome is the per-repository result of an update attempt.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomePlanned   Outcome = "planned" // dry run, nothing written
	OutcomeNoChanges Outcome = "no-changes"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeFailed    Outcome = "failed"
)

// RepoResult reports what happened to one repository.
type RepoResult struct {
	Repo    string
	Outcome Outcome
	Reason  string   // populated for blocked and failed
	Changes []Change // the applied (or planned) bumps
}

// Options configures an update run.
type Options struct {
	DryRun      bool // report the plan without writing
	Force       bool // skip git safety checks
	ForceCommit bool // commit the rewritten manifest
	Logf        func(format string, args ...any)
}

// WithDefaults fills in zero-valued fields.
func (o Options) WithDefaults() Options {
	if o.Logf == nil {
		o.Logf = func(string, ...any) {}
	}
	return o
}

// Updater mutates repository manifests under an ecosystem root.
type Updater struct {
	root string
	git  *gitops.Git
}

// New creates an Updater. A nil git helper uses the real git binary.
func New(root string, git *gitops.Git) *Updater {
	if git == nil {
		git = gitops.New(nil)
	}
	return &Updater{root: root, git: git}
}

// Plan lists the safe bumps available for one repository, sorted by
// package name.
func (u *Updater) Plan(s *snapshot.Snapshot, repoName string) []Change {
	var changes []Change
	for _, use := range s.SafeUpdatesFor(repoName) {
		changes = append(changes, Change{
			Package: use.Declaration.Package,
			From:    use.Mapping.Declared,
			To:      use.Mapping.Latest,
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Package < changes[j].Package })
	return changes
}

// UpdateRepo applies the safe-update plan to one repository. Safety
// violations block the whole repository before any file is touched.
func (u *Updater) UpdateRepo(ctx context.Context, s *snapshot.Snapshot, repoName string, opts Options) RepoResult {
	opts = opts.WithDefaults()
	res := RepoResult{Repo: repoName}

	repo, ok := s.RepoByName(repoName)
	if !ok {
		res.Outcome = OutcomeFailed
		res.Reason = "repository not in snapshot"
		return res
	}

	res.Changes = u.Plan(s, repoName)
	if len(res.Changes) == 0 {
		res.Outcome = OutcomeNoChanges
		return res
	}

	manifestPath := filepath.Join(u.root, filepath.FromSlash(repo.Path))
	dir := filepath.Dir(manifestPath)

	if !opts.Force {
		if err := u.git.CheckSafe(ctx, dir); err != nil {
			res.Outcome = OutcomeBlocked
			res.Reason = err.Error()
			return res
		}
	}

	if opts.DryRun {
		res.Outcome = OutcomePlanned
		return res
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		return res
	}
	rewritten, applied := RewriteManifest(data, res.Changes)
	if applied == 0 {
		res.Outcome = OutcomeNoChanges
		return res
	}
	if err := os.WriteFile(manifestPath, rewritten, 0o644); err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		return res
	}
	opts.Logf("updated %s: %d bumps", repoName, applied)

	if opts.ForceCommit {
		msg := CommitMessage(res.Changes)
		if err := u.git.Commit(ctx, dir, msg, "Cargo.toml"); err != nil {
			res.Outcome = OutcomeFailed
			res.Reason = fmt.Sprintf("commit: %v", err)
			return res
		}
	}

	res.Outcome = OutcomeUpdated
	return res
}

// UpdateAll runs UpdateRepo across the whole ecosystem, skipping the
// hub and the named self repository. One repository's failure never
// stops the others. Results come back in repository order.
func (u *Updater) UpdateAll(ctx context.Context, s *snapshot.Snapshot, selfName string, opts Options) []RepoResult {
	opts = opts.WithDefaults()
	var results []RepoResult
	for _, r := range s.Repos {
		if r.Name == s.Aggregation.HubName || r.Name == selfName {
			continue
		}
		results = append(results, u.UpdateRepo(ctx, s, r.Name, opts))
	}
	return results
}

// CommitMessage renders a deterministic message for a group of bumps.
func CommitMessage(changes []Change) string {
	sorted := make([]Change, len(changes))
	copy(sorted, changes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Package < sorted[j].Package })

	var b strings.Builder
	fmt.Fprintf(&b, "deps: apply %d safe update", len(sorted))
	if len(sorted) != 1 {
		b.WriteString("s")
	}
	b.WriteString("\n")
	for _, c := range sorted {
		fmt.Fprintf(&b, "\n- %s: %s -> %s", c.Package, c.From, c.To)
	}
	return b.String()
}
