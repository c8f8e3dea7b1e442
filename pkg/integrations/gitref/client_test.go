package gitref

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/depscope/depscope/pkg/cache"
)

const lsRemoteOut = `2f1e6a8b	refs/tags/v0.9.0
9c44d1e0	refs/tags/v0.10.2
11aa22bb	refs/tags/v0.10.11
deadbeef	refs/tags/snapshot-2024
feedface	refs/tags/v1.0.0-rc.1
`

func TestLatestTag(t *testing.T) {
	run := func(ctx context.Context, args ...string) (string, error) {
		return lsRemoteOut, nil
	}
	c := NewClient(run, cache.NewNullCache(), time.Hour)

	got, err := c.LatestTag(context.Background(), "https://example.com/repo.git", false)
	if err != nil {
		t.Fatal(err)
	}
	// 1.0.0-rc.1 is a prerelease but still the numerically highest tag.
	if got != "1.0.0-rc.1" {
		t.Errorf("LatestTag = %q, want 1.0.0-rc.1", got)
	}
}

func TestLatestTagOrdersNumerically(t *testing.T) {
	run := func(ctx context.Context, args ...string) (string, error) {
		return "a\trefs/tags/v0.2.0\nb\trefs/tags/v0.10.0\nc\trefs/tags/v0.9.0\n", nil
	}
	c := NewClient(run, cache.NewNullCache(), time.Hour)

	got, err := c.LatestTag(context.Background(), "url", false)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0.10.0" {
		t.Errorf("LatestTag = %q, want 0.10.0 (numeric, not lexicographic)", got)
	}
}

func TestLatestTagNoVersions(t *testing.T) {
	run := func(ctx context.Context, args ...string) (string, error) {
		return "deadbeef\trefs/tags/release-final\n", nil
	}
	c := NewClient(run, cache.NewNullCache(), time.Hour)

	_, err := c.LatestTag(context.Background(), "url", false)
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestLatestTagRemoteFailure(t *testing.T) {
	run := func(ctx context.Context, args ...string) (string, error) {
		return "", errors.New("could not resolve host")
	}
	c := NewClient(run, cache.NewNullCache(), time.Hour)

	_, err := c.LatestTag(context.Background(), "url", false)
	if !errors.Is(err, cache.ErrNetwork) {
		t.Errorf("want ErrNetwork, got %v", err)
	}
}

func TestLatestTagCaches(t *testing.T) {
	calls := 0
	run := func(ctx context.Context, args ...string) (string, error) {
		calls++
		return "a\trefs/tags/v1.2.3\n", nil
	}
	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(run, backend, time.Hour)

	for i := 0; i < 2; i++ {
		got, err := c.LatestTag(context.Background(), "url", false)
		if err != nil {
			t.Fatal(err)
		}
		if got != "1.2.3" {
			t.Errorf("LatestTag = %q", got)
		}
	}
	if calls != 1 {
		t.Errorf("ls-remote calls = %d, want 1", calls)
	}
}
