package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/depscope/depscope/pkg/gitops"
	"github.com/depscope/depscope/pkg/manifest"
	"github.com/depscope/depscope/pkg/resolve"
	"github.com/depscope/depscope/pkg/snapshot"
)

const appManifest = `# app manifest
[package]
name = "app"
version = "1.2.0"

[dependencies]
serde = { version = "1.0.200", features = ["derive"] }
tokio = "1.41.0"

[dependencies.tracing]
version = "0.1.38"
features = ["log"]

[dev-dependencies]
criterion = "0.5.1"

[features]
serde = []
`

func TestRewriteManifest(t *testing.T) {
	changes := []Change{
		{Package: "serde", From: "1.0.200", To: "1.0.226"},
		{Package: "tokio", From: "1.41.0", To: "1.45.2"},
		{Package: "tracing", From: "0.1.38", To: "0.1.41"},
		{Package: "criterion", From: "0.5.1", To: "0.5.3"},
	}
	out, applied := RewriteManifest([]byte(appManifest), changes)
	if applied != 4 {
		t.Fatalf("applied = %d, want 4", applied)
	}
	text := string(out)
	for _, want := range []string{
		`serde = { version = "1.0.226", features = ["derive"] }`,
		`tokio = "1.45.2"`,
		`version = "0.1.41"`,
		`criterion = "0.5.3"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in rewritten manifest", want)
		}
	}
	// Untouched content survives byte for byte.
	if !strings.Contains(text, "# app manifest") {
		t.Error("comment was lost")
	}
	if !strings.Contains(text, `version = "1.2.0"`) {
		t.Error("[package] version must not change")
	}
	if !strings.Contains(text, "serde = []") {
		t.Error("[features] entry with a dependency's name must not change")
	}
}

func TestRewriteManifestStalePlan(t *testing.T) {
	// The file already moved past the plan; nothing matches.
	_, applied := RewriteManifest([]byte(appManifest), []Change{
		{Package: "serde", From: "1.0.100", To: "1.0.226"},
	})
	if applied != 0 {
		t.Errorf("applied = %d, want 0", applied)
	}
}

// ecosystem writes a two-repo tree to disk and builds its snapshot.
func ecosystem(t *testing.T) (string, *snapshot.Snapshot) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "tools", "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "tools", "app", "Cargo.toml"), []byte(appManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := func(name, v string) manifest.Dependency {
		return manifest.Dependency{
			Name: name, Kind: manifest.KindNormal, Version: v,
			Source: manifest.Source{Kind: manifest.SourceRegistry, Version: v},
		}
	}
	ms := []*manifest.Manifest{
		{
			Repository: manifest.Repository{Name: "hubcrate", Path: "core/hubcrate/Cargo.toml", Parent: "core", Version: "0.4.3"},
		},
		{
			Repository: manifest.Repository{Name: "app", Path: "tools/app/Cargo.toml", Parent: "tools", Version: "1.2.0"},
			Dependencies: []manifest.Dependency{
				reg("serde", "1.0.200"),
				reg("tokio", "1.41.0"),
			},
		},
	}
	results := map[string]resolve.Result{
		"serde": {Package: "serde", Latest: "1.0.226", Source: manifest.SourceRegistry},
		// tokio 2.0.0 is breaking and must never appear in a plan.
		"tokio": {Package: "tokio", Latest: "2.0.0", Source: manifest.SourceRegistry},
	}
	return root, snapshot.Build(root, "hubcrate", ms, results)
}

type scriptGit struct {
	safeErr error
	commits []string
}

func (s *scriptGit) run(ctx context.Context, dir string, args ...string) (string, error) {
	switch args[0] {
	case "rev-parse":
		if s.safeErr != nil {
			return "", s.safeErr
		}
		return "main\n", nil
	case "status":
		return "", nil
	case "rev-list":
		return "0\n", nil
	case "add":
		return "", nil
	case "commit":
		s.commits = append(s.commits, args[2])
		return "", nil
	}
	return "", nil
}

func TestUpdateRepoAppliesOnlySafeBumps(t *testing.T) {
	root, s := ecosystem(t)
	g := &scriptGit{}
	u := New(root, gitops.New(g.run))

	res := u.UpdateRepo(context.Background(), s, "app", Options{})
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Reason)
	}
	if len(res.Changes) != 1 || res.Changes[0].Package != "serde" {
		t.Fatalf("changes = %+v", res.Changes)
	}

	data, err := os.ReadFile(filepath.Join(root, "tools", "app", "Cargo.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"1.0.226"`) {
		t.Error("serde bump not written")
	}
	if !strings.Contains(string(data), `tokio = "1.41.0"`) {
		t.Error("breaking tokio update must not be applied")
	}
}

func TestUpdateRepoDryRun(t *testing.T) {
	root, s := ecosystem(t)
	u := New(root, gitops.New((&scriptGit{}).run))

	before, _ := os.ReadFile(filepath.Join(root, "tools", "app", "Cargo.toml"))
	res := u.UpdateRepo(context.Background(), s, "app", Options{DryRun: true})
	if res.Outcome != OutcomePlanned || len(res.Changes) != 1 {
		t.Fatalf("res = %+v", res)
	}
	after, _ := os.ReadFile(filepath.Join(root, "tools", "app", "Cargo.toml"))
	if string(before) != string(after) {
		t.Error("dry run must not touch the manifest")
	}
}

func TestUpdateRepoBlockedLeavesDiskUntouched(t *testing.T) {
	root, s := ecosystem(t)
	g := &scriptGit{safeErr: errors.New("fatal: not a git repository")}
	u := New(root, gitops.New(g.run))

	before, _ := os.ReadFile(filepath.Join(root, "tools", "app", "Cargo.toml"))
	res := u.UpdateRepo(context.Background(), s, "app", Options{})
	if res.Outcome != OutcomeBlocked || res.Reason == "" {
		t.Fatalf("res = %+v", res)
	}
	after, _ := os.ReadFile(filepath.Join(root, "tools", "app", "Cargo.toml"))
	if string(before) != string(after) {
		t.Error("blocked update must not touch the manifest")
	}
}

func TestUpdateRepoForceSkipsChecks(t *testing.T) {
	root, s := ecosystem(t)
	g := &scriptGit{safeErr: errors.New("fatal: not a git repository")}
	u := New(root, gitops.New(g.run))

	res := u.UpdateRepo(context.Background(), s, "app", Options{Force: true})
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("res = %+v", res)
	}
}

func TestUpdateRepoForceCommit(t *testing.T) {
	root, s := ecosystem(t)
	g := &scriptGit{}
	u := New(root, gitops.New(g.run))

	res := u.UpdateRepo(context.Background(), s, "app", Options{ForceCommit: true})
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("res = %+v", res)
	}
	if len(g.commits) != 1 {
		t.Fatalf("commits = %v", g.commits)
	}
	if !strings.Contains(g.commits[0], "serde: 1.0.200 -> 1.0.226") {
		t.Errorf("commit message = %q", g.commits[0])
	}
}

func TestUpdateAllSkipsHubAndSelf(t *testing.T) {
	root, s := ecosystem(t)
	u := New(root, gitops.New((&scriptGit{}).run))

	results := u.UpdateAll(context.Background(), s, "app", Options{})
	if len(results) != 0 {
		t.Errorf("hub and self must be skipped, got %+v", results)
	}

	results = u.UpdateAll(context.Background(), s, "", Options{})
	if len(results) != 1 || results[0].Repo != "app" {
		t.Errorf("results = %+v", results)
	}
}

func TestCommitMessageDeterministic(t *testing.T) {
	a := CommitMessage([]Change{
		{Package: "tokio", From: "1.41.0", To: "1.45.2"},
		{Package: "serde", From: "1.0.200", To: "1.0.226"},
	})
	b := CommitMessage([]Change{
		{Package: "serde", From: "1.0.200", To: "1.0.226"},
		{Package: "tokio", From: "1.41.0", To: "1.45.2"},
	})
	if a != b {
		t.Error("message depends on input order")
	}
	if !strings.HasPrefix(a, "deps: apply 2 safe updates") {
		t.Errorf("message = %q", a)
	}
}
