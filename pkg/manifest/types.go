// Package manifest discovers and extracts Cargo manifests across an
// ecosystem root.
//
// Discovery walks the root and returns every Cargo.toml path, skipping
// build output and archive directories. Extraction maps one manifest
// onto a Repository record plus its flat list of dependency
// declarations, dispatching each declaration's shape onto a tagged
// Source so the rest of the engine never branches on raw TOML keys.
package manifest

import "fmt"

// SourceKind identifies where a dependency's versions come from.
type SourceKind string

const (
	SourceRegistry  SourceKind = "crate"     // bare version string, resolved via crates.io
	SourceLocal     SourceKind = "local"     // path dependency inside the ecosystem
	SourceGit       SourceKind = "git"       // remote git repository
	SourceWorkspace SourceKind = "workspace" // version inherited from the workspace root
	SourceUnknown   SourceKind = "unknown"
)

// DepKind is the dependency table a declaration came from.
type DepKind string

const (
	KindNormal DepKind = "dep"
	KindDev    DepKind = "dev-dep"
	KindBuild  DepKind = "build-dep"
)

// Source is the tagged variant describing a dependency declaration's
// origin. Exactly the fields relevant to Kind are populated.
type Source struct {
	Kind    SourceKind
	Version string // registry: constraint as written
	Path    string // local: relative path from the declaring manifest
	GitURL  string // git: remote URL
	GitRef  string // git: rev, branch, or tag (HEAD when unspecified)
}

// Locator renders the source as the single string stored in the cache
// artifact's SOURCE_VALUE column.
func (s Source) Locator() string {
	switch s.Kind {
	case SourceRegistry:
		return s.Version
	case SourceLocal:
		return s.Path
	case SourceGit:
		return fmt.Sprintf("%s#%s", s.GitURL, s.GitRef)
	case SourceWorkspace:
		return "WORKSPACE"
	}
	return "NONE"
}

// Repository is one ecosystem member as read from its manifest.
type Repository struct {
	Name        string // package name, or directory name when derived
	Path        string // manifest path relative to the ecosystem root
	Parent      string // containing directory category ("root" at top level)
	ModTime     int64  // manifest mtime, unix seconds
	Version     string // the repository's own declared version
	NameDerived bool   // true when [package].name was absent
}

// Dependency is one line of a repository's dependency list.
type Dependency struct {
	Name     string
	Version  string // declared or locally resolved version; empty when unknowable
	Kind     DepKind
	Features []string // lexicographically sorted; nil when none
	Source   Source
}

// Manifest bundles extraction output for a single Cargo.toml.
type Manifest struct {
	Repository   Repository
	Dependencies []Dependency
}

// HubUsage describes whether and how a repository depends on the
// designated hub package.
type HubUsage struct {
	Status  string // "using", "path", "workspace", or "none"
	Version string // declared version, "path", "workspace", or "NONE"
}

// HubUsageOf inspects a manifest's declarations for a dependency on the
// hub package. Only normal dependencies count as hub consumption.
func (m *Manifest) HubUsageOf(hubName string) HubUsage {
	if hubName == "" {
		return HubUsage{Status: "none", Version: "NONE"}
	}
	for _, d := range m.Dependencies {
		if d.Name != hubName || d.Kind != KindNormal {
			continue
		}
		switch d.Source.Kind {
		case SourceLocal:
			return HubUsage{Status: "path", Version: "path"}
		case SourceWorkspace:
			return HubUsage{Status: "workspace", Version: "workspace"}
		default:
			return HubUsage{Status: "using", Version: d.Source.Version}
		}
	}
	return HubUsage{Status: "none", Version: "NONE"}
}
