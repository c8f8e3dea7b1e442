package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// cargoFile mirrors the subset of Cargo.toml the engine reads. The
// dependency tables stay untyped because declarations come in several
// shapes (bare string, inline table, workspace inheritance).
type cargoFile struct {
	Package           map[string]any  `toml:"package"`
	Workspace         *workspaceTable `toml:"workspace"`
	Dependencies      map[string]any  `toml:"dependencies"`
	DevDependencies   map[string]any  `toml:"dev-dependencies"`
	BuildDependencies map[string]any  `toml:"build-dependencies"`
}

type workspaceTable struct {
	Package      map[string]any `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
}

// Load parses the manifest at relPath (relative to root) into a
// Manifest. Local path dependencies have their versions resolved from
// the referenced manifest on disk; workspace dependencies are resolved
// from the nearest enclosing workspace root.
func Load(root, relPath string) (*Manifest, error) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	var cf cargoFile
	if _, err := toml.DecodeFile(abs, &cf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", relPath, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}

	dir := filepath.Dir(abs)
	repo := Repository{
		Path:    relPath,
		ModTime: info.ModTime().Unix(),
		Parent:  parentGroup(relPath),
	}
	if name := tableString(cf.Package, "name"); name != "" {
		repo.Name = name
	} else {
		repo.Name = filepath.Base(dir)
		repo.NameDerived = true
	}
	repo.Version = tableString(cf.Package, "version")
	if repo.Version == "" && cf.Workspace != nil {
		repo.Version = tableString(cf.Workspace.Package, "version")
	}

	m := &Manifest{Repository: repo}
	for _, tbl := range []struct {
		entries map[string]any
		kind    DepKind
	}{
		{cf.Dependencies, KindNormal},
		{cf.DevDependencies, KindDev},
		{cf.BuildDependencies, KindBuild},
	} {
		names := make([]string, 0, len(tbl.entries))
		for name := range tbl.entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			dep, ok := parseDep(name, tbl.entries[name], tbl.kind, dir)
			if !ok {
				continue
			}
			if dep.Source.Kind == SourceWorkspace {
				dep.Version = workspaceVersion(root, relPath, name)
			}
			m.Dependencies = append(m.Dependencies, dep)
		}
	}
	return m, nil
}

// parentGroup derives the grouping category from the manifest path: the
// directory containing the repository's own directory, or "root" for
// repositories at the top level.
func parentGroup(relPath string) string {
	dir := filepath.Dir(filepath.FromSlash(relPath))
	parent := filepath.Dir(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return "root"
	}
	return filepath.Base(parent)
}

// parseDep dispatches on a declaration's TOML shape. Returns false for
// shapes that carry no usable dependency information.
func parseDep(name string, raw any, kind DepKind, dir string) (Dependency, bool) {
	dep := Dependency{Name: name, Kind: kind}
	switch v := raw.(type) {
	case string:
		dep.Source = Source{Kind: SourceRegistry, Version: v}
		dep.Version = v
		return dep, true
	case map[string]any:
		dep.Features = featureList(v)
		if ws, ok := v["workspace"].(bool); ok && ws {
			dep.Source = Source{Kind: SourceWorkspace}
			return dep, true
		}
		if p, ok := v["path"].(string); ok {
			dep.Source = Source{Kind: SourceLocal, Path: p}
			dep.Version = localVersion(dir, p)
			return dep, true
		}
		if url, ok := v["git"].(string); ok {
			ref := "HEAD"
			for _, key := range []string{"rev", "branch", "tag"} {
				if r, ok := v[key].(string); ok && r != "" {
					ref = r
					break
				}
			}
			dep.Source = Source{Kind: SourceGit, GitURL: url, GitRef: ref}
			return dep, true
		}
		if ver, ok := v["version"].(string); ok {
			dep.Source = Source{Kind: SourceRegistry, Version: ver}
			dep.Version = ver
			return dep, true
		}
		dep.Source = Source{Kind: SourceUnknown}
		return dep, true
	}
	return Dependency{}, false
}

func featureList(tbl map[string]any) []string {
	raw, ok := tbl["features"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	fs := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			fs = append(fs, s)
		}
	}
	if len(fs) == 0 {
		return nil
	}
	sort.Strings(fs)
	return fs
}

// localVersion reads the version of the manifest a path dependency
// points at. Returns "" when the target manifest is missing or carries
// no version.
func localVersion(dir, relTarget string) string {
	target := filepath.Join(dir, filepath.FromSlash(relTarget), "Cargo.toml")
	var cf cargoFile
	if _, err := toml.DecodeFile(target, &cf); err != nil {
		return ""
	}
	return tableString(cf.Package, "version")
}

// workspaceVersion walks from the declaring manifest up to root looking
// for a workspace manifest that pins depName. Returns "" when no pin is
// found.
func workspaceVersion(root, relPath, depName string) string {
	dir := filepath.Dir(filepath.Join(root, filepath.FromSlash(relPath)))
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	for {
		var cf cargoFile
		if _, err := toml.DecodeFile(filepath.Join(dir, "Cargo.toml"), &cf); err == nil {
			if cf.Workspace != nil {
				if v := pinnedVersion(cf.Workspace.Dependencies, depName); v != "" {
					return v
				}
			}
		}
		abs, err := filepath.Abs(dir)
		if err != nil || abs == rootAbs {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// pinnedVersion extracts the version from a [workspace.dependencies]
// entry, which may be a bare string or a table.
func pinnedVersion(entries map[string]any, name string) string {
	raw, ok := entries[name]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["version"].(string)
		return s
	}
	return ""
}

func tableString(tbl map[string]any, key string) string {
	if tbl == nil {
		return ""
	}
	s, _ := tbl[key].(string)
	return s
}

// LoadAll extracts every discovered manifest. Malformed manifests are
// skipped with a warning so one broken repository never hides the rest
// of the ecosystem.
func LoadAll(root string, paths []string) (ms []*Manifest, warnings []string) {
	for _, p := range paths {
		m, err := Load(root, p)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("extract %s: %v", p, err))
			continue
		}
		ms = append(ms, m)
	}
	return ms, warnings
}

// FindRepo returns the manifest whose package name matches name, used
// to prefer in-ecosystem versions for git dependencies.
func FindRepo(ms []*Manifest, name string) *Manifest {
	for _, m := range ms {
		if strings.EqualFold(m.Repository.Name, name) {
			return m
		}
	}
	return nil
}
