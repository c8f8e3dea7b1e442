package manifest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Directory names that never contain ecosystem members. Build output,
// reference checkouts, and archived repos are skipped wholesale.
var skipDirs = []string{"target", "ref", "howto", ".git", "node_modules"}

func skipDir(name string) bool {
	for _, s := range skipDirs {
		if name == s {
			return true
		}
	}
	lower := strings.ToLower(name)
	return strings.Contains(lower, "_arch") || strings.Contains(lower, "archive")
}

// Discover walks root and returns every Cargo.toml path relative to
// root, sorted lexicographically. Unreadable subtrees are reported as
// warnings and skipped; only a failure to read root itself is fatal.
func Discover(root string) (paths []string, warnings []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			if path == root {
				return werr
			}
			warnings = append(warnings, fmt.Sprintf("skipping %s: %v", path, werr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != "Cargo.toml" {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %s: %v", path, rerr))
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, warnings, nil
}
