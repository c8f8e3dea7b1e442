// Package analysis derives ecosystem-level classifications from
// extracted declarations and resolved versions. Everything here is
// pure: no IO, no clocks, no network.
package analysis

import (
	"sort"

	"github.com/depscope/depscope/pkg/manifest"
	"github.com/depscope/depscope/pkg/version"
)

// HubStatus relates a version to the hub. On repository rows it
// describes a consumer's declared hub version against the hub on
// disk; on package rows it describes the hub's own declaration
// against the resolved latest.
type HubStatus string

const (
	HubCurrent  HubStatus = "current"
	HubOutdated HubStatus = "outdated"
	HubAhead    HubStatus = "ahead"
	HubGap      HubStatus = "gap" // consumer: unknowable; package: used but missing from the hub
	HubNone     HubStatus = "none"
)

// Tier buckets a package by how many repositories declare it.
type Tier string

const (
	TierHigh   Tier = "high"   // 5 or more repos
	TierMedium Tier = "medium" // 3 to 4
	TierLow    Tier = "low"    // 1 to 2
	TierNone   Tier = "none"
)

// UsageTier maps a consumer count to its tier.
func UsageTier(count int) Tier {
	switch {
	case count >= 5:
		return TierHigh
	case count >= 3:
		return TierMedium
	case count >= 1:
		return TierLow
	}
	return TierNone
}

// DistinctVersions collapses declared version strings down to their
// semantically distinct set, so "0.9" and "0.9.0" count once. The
// first spelling seen for each version is kept. Unparseable strings
// are distinct by literal value. The result is sorted ascending with
// unparseable entries first.
func DistinctVersions(declared []string) []string {
	seen := map[string]string{}
	for _, v := range declared {
		key, ok := version.Canonical(v)
		if !ok {
			key = "raw:" + v
		}
		if _, dup := seen[key]; !dup {
			seen[key] = v
		}
	}
	out := make([]string, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := version.Compare(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i] < out[j]
	})
	return out
}

// HasConflict reports whether a package is declared at more than one
// semantically distinct version.
func HasConflict(declared []string) bool {
	return len(DistinctVersions(declared)) > 1
}

// HubRelation classifies one repository's relationship to the hub.
// Path and workspace consumers track the hub directly and are always
// current. A consumer whose declared version cannot be compared with
// the hub's version is a gap, not an error.
func HubRelation(usage manifest.HubUsage, hubVersion string) HubStatus {
	switch usage.Status {
	case "none", "":
		return HubNone
	case "path", "workspace":
		return HubCurrent
	}

	_, dok := version.Canonical(usage.Version)
	_, aok := version.Canonical(hubVersion)
	if !dok || !aok {
		return HubGap
	}
	switch version.Compare(usage.Version, hubVersion) {
	case 0:
		return HubCurrent
	case -1:
		return HubOutdated
	default:
		return HubAhead
	}
}

// HubPackageRelation compares the hub's own declared version of a
// package with the resolved latest: equal is current, older is
// outdated, newer is ahead. Unparseable on either side means the
// relation is unknowable and reported as none, never guessed. Whether
// an undeclared package is a gap depends on ecosystem usage, so that
// case is decided by the caller.
func HubPackageRelation(hubVersion, latest string) HubStatus {
	_, hok := version.Canonical(hubVersion)
	_, lok := version.Canonical(latest)
	if !hok || !lok {
		return HubNone
	}
	switch version.Compare(hubVersion, latest) {
	case 0:
		return HubCurrent
	case -1:
		return HubOutdated
	default:
		return HubAhead
	}
}

// ClassifyDeclaration derives the stability of a declared version and
// the risk of moving it to latest. Local and workspace declarations
// have local stability; their effective version was read from disk, so
// when it matches latest they are current like any other declaration.
func ClassifyDeclaration(dep manifest.Dependency, latest string) (version.Stability, version.Breaking) {
	var stab version.Stability
	switch dep.Source.Kind {
	case manifest.SourceLocal, manifest.SourceWorkspace:
		stab = version.StabilityLocal
	default:
		stab = version.Classify(dep.Version)
	}
	return stab, version.ClassifyUpdate(dep.Version, latest)
}
