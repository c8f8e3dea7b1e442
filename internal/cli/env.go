package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/depscope/depscope/pkg/cache"
	"github.com/depscope/depscope/pkg/pipeline"
	"github.com/depscope/depscope/pkg/snapshot"
)

// Environment fallbacks for values not given on the command line.
const (
	envRoot  = "DEPSCOPE_ROOT"
	envRedis = "DEPSCOPE_REDIS_URL"
)

// resolveRoot picks the ecosystem root: explicit argument first, then
// DEPSCOPE_ROOT, then the working directory.
func resolveRoot(arg string) (string, error) {
	root := arg
	if root == "" {
		root = os.Getenv(envRoot)
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("ecosystem root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("ecosystem root %s is not a directory", abs)
	}
	return abs, nil
}

// cacheDir returns the HTTP lookup cache directory.
func cacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "depscope", "http"), nil
}

// newBackend picks the HTTP cache backend: Redis when
// DEPSCOPE_REDIS_URL is set, the file cache otherwise.
func newBackend(ctx context.Context, logger *log.Logger) (cache.Cache, error) {
	if url := os.Getenv(envRedis); url != "" {
		logger.Debug("using redis cache backend", "url", url)
		return cache.NewRedisCache(ctx, url)
	}
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileCache(dir)
}

// loadSnapshot hydrates the artifact for a query command.
func loadSnapshot(rootArg, output string) (*snapshot.Snapshot, error) {
	root, err := resolveRoot(rootArg)
	if err != nil {
		return nil, err
	}
	path := output
	if path == "" {
		path = pipeline.DefaultArtifactPath(root)
	}
	s, err := snapshot.Load(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("no snapshot at %s, run 'depscope generate' first", path)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
