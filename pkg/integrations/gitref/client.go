// Package gitref inspects remote git repositories for version tags.
package gitref

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/depscope/depscope/pkg/cache"
	"github.com/depscope/depscope/pkg/version"
)

// Runner executes a git command and returns its combined stdout.
// Injectable so tests never touch a real remote.
type Runner func(ctx context.Context, args ...string) (string, error)

// ExecRunner shells out to the git binary.
func ExecRunner(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Client resolves the latest tagged version of a remote repository.
type Client struct {
	run     Runner
	backend cache.Cache
	ttl     time.Duration
}

// NewClient creates a gitref client. A nil runner uses the git binary;
// a nil backend disables caching.
func NewClient(run Runner, backend cache.Cache, cacheTTL time.Duration) *Client {
	if run == nil {
		run = ExecRunner
	}
	if backend == nil {
		backend = cache.NewNullCache()
	}
	return &Client{run: run, backend: backend, ttl: cacheTTL}
}

// LatestTag returns the highest semver tag published on the remote at
// url. Tags that do not parse as versions are ignored. Returns
// cache.ErrNotFound when the remote has no version tags at all.
func (c *Client) LatestTag(ctx context.Context, url string, refresh bool) (string, error) {
	key := "gitref:" + url
	if !refresh {
		if data, hit, _ := c.backend.Get(ctx, key); hit {
			return string(data), nil
		}
	}

	out, err := c.run(ctx, "ls-remote", "--tags", "--refs", url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cache.ErrNetwork, err)
	}

	tags := parseTags(out)
	best := version.Max(tags)
	if best == "" {
		return "", fmt.Errorf("no version tags on %s: %w", url, cache.ErrNotFound)
	}

	_ = c.backend.Set(ctx, key, []byte(best), c.ttl)
	return best, nil
}

// parseTags extracts tag names from ls-remote output, stripping the
// refs/tags/ prefix and a leading "v".
func parseTags(out string) []string {
	var tags []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		ref := fields[1]
		name, ok := strings.CutPrefix(ref, "refs/tags/")
		if !ok {
			continue
		}
		tags = append(tags, strings.TrimPrefix(name, "v"))
	}
	return tags
}
