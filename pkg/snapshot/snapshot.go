// Package snapshot defines the relational model of one full ecosystem
// scan and its TSV cache artifact.
//
// A snapshot holds four collections linked by integer IDs: repositories,
// raw dependency declarations, unique packages with their resolved
// latest versions, and mapping rows joining the three with derived
// classifications. IDs are dense and deterministic for a given scan:
// repositories from 100, packages from 200, mappings from 300,
// declarations from 1000.
package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/depscope/depscope/pkg/analysis"
	"github.com/depscope/depscope/pkg/manifest"
	"github.com/depscope/depscope/pkg/resolve"
	"github.com/depscope/depscope/pkg/version"
)

// SchemaVersion guards hydration: an artifact written by a different
// schema is rejected, never reinterpreted.
const SchemaVersion = 1

const (
	repoIDBase    = 100
	packageIDBase = 200
	mappingIDBase = 300
	declIDBase    = 1000
)

// Sentinel values used in the artifact where no real version exists.
const (
	SentinelLocal     = "LOCAL"
	SentinelWorkspace = "WORKSPACE"
	SentinelNone      = "NONE"
)

// Repo is one scanned repository.
type Repo struct {
	ID          int
	Name        string
	Path        string
	Parent      string
	Version     string
	ModTime     int64
	DepCount    int
	HubStatus   string // using, path, workspace, none
	HubVersion  string
	HubRelation analysis.HubStatus
}

// Declaration is one raw dependency line of one repository.
type Declaration struct {
	ID          int
	RepoID      int
	Package     string
	Version     string // declared or resolved-from-disk; sentinel when absent
	Kind        manifest.DepKind
	SourceKind  manifest.SourceKind
	SourceValue string
	Features    []string
}

// Package is one unique dependency across the ecosystem with its
// resolved latest version. UsedBy, Tier, and Declared count ecosystem
// consumers only; the hub's own declarations feed the hub-relationship
// fields instead. HubStatus gap means the ecosystem uses the package
// but the hub does not declare it.
type Package struct {
	ID         int
	Name       string
	Latest     string // sentinel NONE when the lookup failed
	Source     manifest.SourceKind
	Locator    string
	HubVersion string // sentinel NONE when the hub does not declare it
	HubStatus  analysis.HubStatus
	UsedBy     int
	Tier       analysis.Tier
	Conflict   bool
	Declared   []string // semantically distinct declared versions
}

// Mapping joins a declaration to its package with the derived
// classification of that edge.
type Mapping struct {
	ID        int
	DeclID    int
	RepoID    int
	PackageID int
	Declared  string
	Latest    string
	Stability version.Stability
	Breaking  version.Breaking
}

// Aggregation is the precomputed summary section of the artifact.
type Aggregation struct {
	SchemaVersion int
	GenerationID  string
	GeneratedAt   time.Time
	Root          string
	HubName       string
	HubVersion    string

	TotalRepos        int
	TotalDeclarations int
	TotalPackages     int

	SourceCrate     int
	SourceLocal     int
	SourceGit       int
	SourceWorkspace int

	// Hub coverage, counted over packages: how the hub's own
	// declarations relate to the resolved latest versions.
	HubCurrent  int
	HubOutdated int
	HubAhead    int
	HubGap      int
	HubNone     int

	Breaking    int
	Safe        int
	Current     int
	UnknownRisk int

	Stable     int
	Unstable   int
	PreRelease int

	Conflicts int
}

// Snapshot is one complete scan result.
type Snapshot struct {
	Aggregation  Aggregation
	Repos        []Repo
	Declarations []Declaration
	Packages     []Package
	Mappings     []Mapping
}

// Build assembles a snapshot from extracted manifests and resolution
// results. Repositories keep discovery order (sorted paths), packages
// sort by name, so IDs are stable across runs over the same tree.
func Build(root, hubName string, ms []*manifest.Manifest, results map[string]resolve.Result) *Snapshot {
	s := &Snapshot{}

	sorted := make([]*manifest.Manifest, len(ms))
	copy(sorted, ms)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Repository.Path < sorted[j].Repository.Path
	})

	hubVersion := ""
	hubRepo := manifest.FindRepo(sorted, hubName)
	if hubRepo != nil {
		hubVersion = hubRepo.Repository.Version
	}

	// The hub's own declarations back the per-package hub relationship.
	// Normal declarations win over dev/build ones for the same name.
	hubDecls := map[string]string{}
	if hubRepo != nil {
		for _, d := range hubRepo.Dependencies {
			if _, ok := hubDecls[d.Name]; !ok || d.Kind == manifest.KindNormal {
				hubDecls[d.Name] = d.Version
			}
		}
	}

	// Repos and declarations.
	repoIDs := map[string]int{}
	declIndex := map[int]*manifest.Dependency{}
	declID := declIDBase
	hubRepoID := -1
	for i, m := range sorted {
		usage := m.HubUsageOf(hubName)
		rel := analysis.HubRelation(usage, hubVersion)
		if m == hubRepo {
			// The hub itself is not a hub consumer.
			usage = manifest.HubUsage{Status: "none", Version: SentinelNone}
			rel = analysis.HubNone
			hubRepoID = repoIDBase + i
		}
		repo := Repo{
			ID:          repoIDBase + i,
			Name:        m.Repository.Name,
			Path:        m.Repository.Path,
			Parent:      m.Repository.Parent,
			Version:     orSentinel(m.Repository.Version, SentinelNone),
			ModTime:     m.Repository.ModTime,
			DepCount:    len(m.Dependencies),
			HubStatus:   usage.Status,
			HubVersion:  usage.Version,
			HubRelation: rel,
		}
		repoIDs[m.Repository.Path] = repo.ID
		s.Repos = append(s.Repos, repo)

		for di := range m.Dependencies {
			d := &m.Dependencies[di]
			s.Declarations = append(s.Declarations, Declaration{
				ID:          declID,
				RepoID:      repo.ID,
				Package:     d.Name,
				Version:     declaredValue(d),
				Kind:        d.Kind,
				SourceKind:  d.Source.Kind,
				SourceValue: d.Source.Locator(),
				Features:    d.Features,
			})
			declIndex[declID] = d
			declID++
		}
	}

	// Packages, one per unique name. The hub's declarations create
	// package rows but never count as ecosystem consumption.
	type pkgAccum struct {
		declared []string
		usedBy   map[int]bool
	}
	accum := map[string]*pkgAccum{}
	for _, d := range s.Declarations {
		a := accum[d.Package]
		if a == nil {
			a = &pkgAccum{usedBy: map[int]bool{}}
			accum[d.Package] = a
		}
		if d.RepoID == hubRepoID {
			continue
		}
		if dep := declIndex[d.ID]; dep.Version != "" {
			a.declared = append(a.declared, dep.Version)
		}
		a.usedBy[d.RepoID] = true
	}
	names := make([]string, 0, len(accum))
	for name := range accum {
		names = append(names, name)
	}
	sort.Strings(names)

	pkgIDs := map[string]int{}
	for i, name := range names {
		a := accum[name]
		res := results[name]
		distinct := analysis.DistinctVersions(a.declared)

		hubV := SentinelNone
		hubStatus := analysis.HubNone
		hubDeclared, inHub := hubDecls[name]
		switch {
		case hubRepo == nil:
			// No hub in this scan, nothing to relate to.
		case strings.EqualFold(name, hubRepo.Repository.Name):
			// The hub crate itself; its consumers live on the repo rows.
		case inHub:
			hubV = orSentinel(hubDeclared, SentinelNone)
			hubStatus = analysis.HubPackageRelation(hubDeclared, res.Latest)
		case len(a.usedBy) > 0:
			hubStatus = analysis.HubGap
		}

		pkg := Package{
			ID:         packageIDBase + i,
			Name:       name,
			Latest:     orSentinel(res.Latest, SentinelNone),
			Source:     orSourceKind(res.Source),
			Locator:    orSentinel(res.Locator, SentinelNone),
			HubVersion: hubV,
			HubStatus:  hubStatus,
			UsedBy:     len(a.usedBy),
			Tier:       analysis.UsageTier(len(a.usedBy)),
			Conflict:   len(distinct) > 1,
			Declared:   distinct,
		}
		pkgIDs[name] = pkg.ID
		s.Packages = append(s.Packages, pkg)
	}

	// Mapping rows join declaration, repo, and package.
	for i, d := range s.Declarations {
		dep := declIndex[d.ID]
		res := results[d.Package]
		stab, brk := analysis.ClassifyDeclaration(*dep, res.Latest)
		s.Mappings = append(s.Mappings, Mapping{
			ID:        mappingIDBase + i,
			DeclID:    d.ID,
			RepoID:    d.RepoID,
			PackageID: pkgIDs[d.Package],
			Declared:  d.Version,
			Latest:    orSentinel(res.Latest, SentinelNone),
			Stability: stab,
			Breaking:  brk,
		})
	}

	s.Aggregation = s.aggregate(root, hubName, hubVersion)
	return s
}

func (s *Snapshot) aggregate(root, hubName, hubVersion string) Aggregation {
	agg := Aggregation{
		SchemaVersion:     SchemaVersion,
		GenerationID:      uuid.NewString(),
		GeneratedAt:       time.Now().UTC().Truncate(time.Second),
		Root:              root,
		HubName:           orSentinel(hubName, SentinelNone),
		HubVersion:        orSentinel(hubVersion, SentinelNone),
		TotalRepos:        len(s.Repos),
		TotalDeclarations: len(s.Declarations),
		TotalPackages:     len(s.Packages),
	}
	for _, d := range s.Declarations {
		switch d.SourceKind {
		case manifest.SourceRegistry:
			agg.SourceCrate++
		case manifest.SourceLocal:
			agg.SourceLocal++
		case manifest.SourceGit:
			agg.SourceGit++
		case manifest.SourceWorkspace:
			agg.SourceWorkspace++
		}
	}
	for _, p := range s.Packages {
		switch p.HubStatus {
		case analysis.HubCurrent:
			agg.HubCurrent++
		case analysis.HubOutdated:
			agg.HubOutdated++
		case analysis.HubAhead:
			agg.HubAhead++
		case analysis.HubGap:
			agg.HubGap++
		default:
			agg.HubNone++
		}
		if p.Conflict {
			agg.Conflicts++
		}
	}
	for _, m := range s.Mappings {
		switch m.Breaking {
		case version.BreakingBreaking:
			agg.Breaking++
		case version.BreakingSafe:
			agg.Safe++
		case version.BreakingCurrent:
			agg.Current++
		default:
			agg.UnknownRisk++
		}
		switch m.Stability {
		case version.StabilityStable:
			agg.Stable++
		case version.StabilityUnstable:
			agg.Unstable++
		case version.StabilityPreRelease:
			agg.PreRelease++
		}
	}
	return agg
}

// declaredValue encodes a dependency's version column, substituting
// sentinels for declarations that carry no resolvable version.
func declaredValue(d *manifest.Dependency) string {
	if d.Version != "" {
		return d.Version
	}
	switch d.Source.Kind {
	case manifest.SourceLocal:
		return SentinelLocal
	case manifest.SourceWorkspace:
		return SentinelWorkspace
	}
	return SentinelNone
}

func orSentinel(v, sentinel string) string {
	if v == "" {
		return sentinel
	}
	return v
}

func orSourceKind(k manifest.SourceKind) manifest.SourceKind {
	if k == "" {
		return manifest.SourceUnknown
	}
	return k
}
