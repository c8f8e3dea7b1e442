package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/depscope/depscope/pkg/snapshot"
)

type fakeRegistry map[string]string

func (f fakeRegistry) LatestVersion(ctx context.Context, name string, refresh bool) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

type fakeGit struct{}

func (fakeGit) LatestTag(ctx context.Context, url string, refresh bool) (string, error) {
	return "", errors.New("no remote in tests")
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func seedEcosystem(t *testing.T) string {
	root := t.TempDir()
	write(t, root, "core/hubcrate/Cargo.toml", `
[package]
name = "hubcrate"
version = "0.4.3"

[dependencies]
serde = "1.0.226"
`)
	write(t, root, "tools/alpha/Cargo.toml", `
[package]
name = "alpha"
version = "1.0.0"

[dependencies]
serde = "1.0.200"
hubcrate = "0.4.1"
`)
	write(t, root, "tools/broken/Cargo.toml", "[package\nnot toml")
	return root
}

func TestGenerateEndToEnd(t *testing.T) {
	root := seedEcosystem(t)
	opts := Options{
		Root:     root,
		Hub:      "hubcrate",
		Registry: fakeRegistry{"serde": "1.0.226", "hubcrate": "0.4.3"},
		Git:      fakeGit{},
	}

	res, err := Generate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	// The broken manifest shows up as a warning, not a failure.
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}

	s := res.Snapshot
	if s.Aggregation.TotalRepos != 2 || s.Aggregation.TotalPackages != 2 {
		t.Errorf("aggregation = %+v", s.Aggregation)
	}
	alpha, ok := s.RepoByName("alpha")
	if !ok || alpha.HubRelation != "outdated" {
		t.Errorf("alpha = %+v", alpha)
	}

	// The artifact landed at the default path and hydrates cleanly.
	wantPath := DefaultArtifactPath(root)
	if res.Path != wantPath {
		t.Errorf("path = %q, want %q", res.Path, wantPath)
	}
	loaded, err := snapshot.Load(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Aggregation.GenerationID != s.Aggregation.GenerationID {
		t.Error("hydrated artifact is not the one just written")
	}
}

func TestGenerateFailedLookupDegrades(t *testing.T) {
	root := seedEcosystem(t)
	opts := Options{
		Root:     root,
		Hub:      "hubcrate",
		Registry: fakeRegistry{"serde": "1.0.226"}, // hubcrate lookup fails
		Git:      fakeGit{},
	}

	res, err := Generate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	pkg, ok := res.Snapshot.PackageByName("hubcrate")
	if !ok || pkg.Latest != snapshot.SentinelNone {
		t.Errorf("hubcrate = %+v", pkg)
	}
	found := false
	for _, w := range res.Warnings {
		if w != "" && (len(w) >= 7 && w[:7] == "resolve") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing resolve warning in %v", res.Warnings)
	}
}

func TestGenerateEmptyRoot(t *testing.T) {
	if _, err := Generate(context.Background(), Options{Root: t.TempDir(), Registry: fakeRegistry{}, Git: fakeGit{}}); err == nil {
		t.Error("a root without manifests should be an error")
	}
}
