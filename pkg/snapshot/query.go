package snapshot

import (
	"sort"

	"github.com/depscope/depscope/pkg/analysis"
	"github.com/depscope/depscope/pkg/manifest"
	"github.com/depscope/depscope/pkg/version"
)

// Conflicts returns every package declared at more than one
// semantically distinct version, sorted by consumer count descending.
func (s *Snapshot) Conflicts() []Package {
	var out []Package
	for _, p := range s.Packages {
		if p.Conflict {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsedBy != out[j].UsedBy {
			return out[i].UsedBy > out[j].UsedBy
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Gaps returns packages the ecosystem uses that the hub does not
// declare, the widest-used first so hub adoption can be prioritized.
func (s *Snapshot) Gaps() []Package {
	var out []Package
	for _, p := range s.Packages {
		if p.HubStatus == analysis.HubGap {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsedBy != out[j].UsedBy {
			return out[i].UsedBy > out[j].UsedBy
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// HubConsumers returns every repository that depends on the hub,
// grouped for reporting: outdated first, then gaps, ahead, current.
func (s *Snapshot) HubConsumers() []Repo {
	rank := map[analysis.HubStatus]int{
		analysis.HubOutdated: 0,
		analysis.HubGap:      1,
		analysis.HubAhead:    2,
		analysis.HubCurrent:  3,
	}
	var out []Repo
	for _, r := range s.Repos {
		if r.HubRelation != analysis.HubNone {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank[out[i].HubRelation], rank[out[j].HubRelation]
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Usage returns all packages sorted by consumer count descending, then
// by name.
func (s *Snapshot) Usage() []Package {
	out := make([]Package, len(s.Packages))
	copy(out, s.Packages)
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsedBy != out[j].UsedBy {
			return out[i].UsedBy > out[j].UsedBy
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// PackageByName looks up a package record.
func (s *Snapshot) PackageByName(name string) (Package, bool) {
	for _, p := range s.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}

// RepoByName looks up a repository record.
func (s *Snapshot) RepoByName(name string) (Repo, bool) {
	for _, r := range s.Repos {
		if r.Name == name {
			return r, true
		}
	}
	return Repo{}, false
}

func (s *Snapshot) repoByID(id int) (Repo, bool) {
	for _, r := range s.Repos {
		if r.ID == id {
			return r, true
		}
	}
	return Repo{}, false
}

// PackageUse is one repository's declaration of a package, joined with
// its classification.
type PackageUse struct {
	Repo        Repo
	Declaration Declaration
	Mapping     Mapping
}

// UsesOf returns every declaration of the named package across the
// ecosystem, sorted by repository name.
func (s *Snapshot) UsesOf(name string) []PackageUse {
	pkg, ok := s.PackageByName(name)
	if !ok {
		return nil
	}
	declByID := map[int]Declaration{}
	for _, d := range s.Declarations {
		declByID[d.ID] = d
	}
	var out []PackageUse
	for _, m := range s.Mappings {
		if m.PackageID != pkg.ID {
			continue
		}
		repo, _ := s.repoByID(m.RepoID)
		out = append(out, PackageUse{Repo: repo, Declaration: declByID[m.DeclID], Mapping: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Repo.Name < out[j].Repo.Name })
	return out
}

// BreakingUpdates returns every declaration whose pending update
// crosses a breaking boundary.
func (s *Snapshot) BreakingUpdates() []PackageUse {
	return s.mappingsWithRisk(version.BreakingBreaking)
}

// SafeUpdatesFor returns the declarations in one repository that can
// move to latest without crossing a breaking boundary. Only normal and
// build dependencies from the registry qualify; local, workspace, and
// git declarations are managed elsewhere.
func (s *Snapshot) SafeUpdatesFor(repoName string) []PackageUse {
	repo, ok := s.RepoByName(repoName)
	if !ok {
		return nil
	}
	var out []PackageUse
	for _, u := range s.mappingsWithRisk(version.BreakingSafe) {
		if u.Repo.ID != repo.ID {
			continue
		}
		if u.Declaration.SourceKind != manifest.SourceRegistry {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (s *Snapshot) mappingsWithRisk(risk version.Breaking) []PackageUse {
	declByID := map[int]Declaration{}
	for _, d := range s.Declarations {
		declByID[d.ID] = d
	}
	var out []PackageUse
	for _, m := range s.Mappings {
		if m.Breaking != risk {
			continue
		}
		repo, _ := s.repoByID(m.RepoID)
		out = append(out, PackageUse{Repo: repo, Declaration: declByID[m.DeclID], Mapping: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Repo.Name != out[j].Repo.Name {
			return out[i].Repo.Name < out[j].Repo.Name
		}
		return out[i].Declaration.Package < out[j].Declaration.Package
	})
	return out
}
