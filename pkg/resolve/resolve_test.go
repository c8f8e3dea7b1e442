package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/depscope/depscope/pkg/manifest"
)

type fakeRegistry struct {
	mu       sync.Mutex
	versions map[string]string
	errs     map[string]error
	calls    map[string]int
	inflight int
	peak     int
}

func (f *fakeRegistry) LatestVersion(ctx context.Context, name string, refresh bool) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if err := f.errs[name]; err != nil {
		return "", err
	}
	v, ok := f.versions[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

type fakeGit struct {
	tags map[string]string
	err  error
}

func (f *fakeGit) LatestTag(ctx context.Context, url string, refresh bool) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.tags[url], nil
}

func reg(name, v string) manifest.Dependency {
	return manifest.Dependency{
		Name: name, Kind: manifest.KindNormal, Version: v,
		Source: manifest.Source{Kind: manifest.SourceRegistry, Version: v},
	}
}

func TestResolveRegistry(t *testing.T) {
	ms := []*manifest.Manifest{
		{Repository: manifest.Repository{Name: "a"}, Dependencies: []manifest.Dependency{reg("serde", "1.0.200"), reg("tokio", "1.41.0")}},
		{Repository: manifest.Repository{Name: "b"}, Dependencies: []manifest.Dependency{reg("serde", "1.0.226")}},
	}
	registry := &fakeRegistry{versions: map[string]string{"serde": "1.0.226", "tokio": "1.45.2"}}
	r := New(registry, &fakeGit{})

	results, warnings := r.Resolve(context.Background(), ms, Options{})
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2 entries", results)
	}
	if results["serde"].Latest != "1.0.226" {
		t.Errorf("serde = %+v", results["serde"])
	}
	// One lookup per unique package, even when declared twice.
	if registry.calls["serde"] != 1 {
		t.Errorf("serde lookups = %d, want 1", registry.calls["serde"])
	}
}

func TestResolveFailureDegradesToUnknown(t *testing.T) {
	ms := []*manifest.Manifest{
		{Dependencies: []manifest.Dependency{reg("good", "1.0.0"), reg("flaky", "1.0.0")}},
	}
	registry := &fakeRegistry{
		versions: map[string]string{"good": "1.2.0"},
		errs:     map[string]error{"flaky": errors.New("timeout")},
	}
	r := New(registry, &fakeGit{})

	results, warnings := r.Resolve(context.Background(), ms, Options{})
	if results["good"].Latest != "1.2.0" {
		t.Errorf("good = %+v", results["good"])
	}
	if results["flaky"].Latest != "" || results["flaky"].Err == nil {
		t.Errorf("flaky should be unknown: %+v", results["flaky"])
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "flaky") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestResolveLocalPrecedence(t *testing.T) {
	ms := []*manifest.Manifest{
		{Dependencies: []manifest.Dependency{reg("util", "0.4.0")}},
		{Dependencies: []manifest.Dependency{{
			Name: "util", Kind: manifest.KindNormal, Version: "0.4.3",
			Source: manifest.Source{Kind: manifest.SourceLocal, Path: "../util"},
		}}},
	}
	registry := &fakeRegistry{versions: map[string]string{"util": "0.2.0"}}
	r := New(registry, &fakeGit{})

	results, _ := r.Resolve(context.Background(), ms, Options{})
	got := results["util"]
	if got.Source != manifest.SourceLocal {
		t.Errorf("local should win over registry: %+v", got)
	}
	if got.Latest != "0.4.3" {
		t.Errorf("latest = %q, want version read from disk", got.Latest)
	}
	if got.Locator != "(LOCAL: ../util)" {
		t.Errorf("locator = %q", got.Locator)
	}
	if registry.calls["util"] != 0 {
		t.Error("local resolution must not hit the registry")
	}
}

func TestResolveGitPrefersEcosystemRepo(t *testing.T) {
	ms := []*manifest.Manifest{
		{Repository: manifest.Repository{Name: "shared", Version: "0.7.1", Path: "libs/shared/Cargo.toml"}},
		{Dependencies: []manifest.Dependency{{
			Name: "shared", Kind: manifest.KindNormal,
			Source: manifest.Source{Kind: manifest.SourceGit, GitURL: "https://example.com/shared.git", GitRef: "HEAD"},
		}}},
	}
	git := &fakeGit{tags: map[string]string{"https://example.com/shared.git": "0.5.0"}}
	r := New(&fakeRegistry{}, git)

	results, _ := r.Resolve(context.Background(), ms, Options{})
	got := results["shared"]
	if got.Latest != "0.7.1" {
		t.Errorf("latest = %q, want in-ecosystem version", got.Latest)
	}
	if got.Locator != "(LOCAL: libs/shared/Cargo.toml)" {
		t.Errorf("locator = %q", got.Locator)
	}
}

func TestResolveGitRemoteTag(t *testing.T) {
	ms := []*manifest.Manifest{
		{Dependencies: []manifest.Dependency{{
			Name: "external", Kind: manifest.KindNormal,
			Source: manifest.Source{Kind: manifest.SourceGit, GitURL: "https://example.com/ext.git", GitRef: "main"},
		}}},
	}
	git := &fakeGit{tags: map[string]string{"https://example.com/ext.git": "2.1.0"}}
	r := New(&fakeRegistry{}, git)

	results, _ := r.Resolve(context.Background(), ms, Options{})
	if results["external"].Latest != "2.1.0" {
		t.Errorf("external = %+v", results["external"])
	}
}

func TestResolveWorkspacePin(t *testing.T) {
	ms := []*manifest.Manifest{
		{Dependencies: []manifest.Dependency{{
			Name: "serde", Kind: manifest.KindNormal, Version: "1.0.200",
			Source: manifest.Source{Kind: manifest.SourceWorkspace},
		}}},
	}
	r := New(&fakeRegistry{}, &fakeGit{})

	results, _ := r.Resolve(context.Background(), ms, Options{})
	if results["serde"].Latest != "1.0.200" {
		t.Errorf("serde = %+v", results["serde"])
	}
}

func TestResolveBoundedConcurrency(t *testing.T) {
	var deps []manifest.Dependency
	versions := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		deps = append(deps, reg(name, "1.0.0"))
		versions[name] = "1.1.0"
	}
	ms := []*manifest.Manifest{{Dependencies: deps}}
	registry := &fakeRegistry{versions: versions}
	r := New(registry, &fakeGit{})

	results, _ := r.Resolve(context.Background(), ms, Options{Workers: 2})
	if len(results) != 10 {
		t.Fatalf("results = %d, want 10", len(results))
	}
	if registry.peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", registry.peak)
	}
}
