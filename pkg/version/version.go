// Package version classifies Cargo version strings.
//
// All functions are pure and never return errors: input that cannot be
// parsed degrades to an Unknown classification so callers can decide
// whether unknown states are acceptable for a given query.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Stability describes how risky a declared version is on its own.
type Stability string

const (
	StabilityStable     Stability = "stable"      // x.y.z with x >= 1
	StabilityUnstable   Stability = "unstable"    // 0.y.z
	StabilityPreRelease Stability = "pre-release" // carries a prerelease tag
	StabilityLocal      Stability = "local"       // path or workspace dependency
	StabilityUnknown    Stability = "unknown"     // unparseable
)

// Breaking describes the relationship between a declared version and the
// latest resolvable version of the same package.
type Breaking string

const (
	BreakingSafe     Breaking = "safe"     // newer, major-compatible update available
	BreakingBreaking Breaking = "breaking" // update crosses a breaking boundary
	BreakingCurrent  Breaking = "current"  // declared matches (or exceeds) latest
	BreakingUnknown  Breaking = "unknown"  // either side unparseable
)

// Canonical parses a Cargo version constraint and returns its canonical
// semver form with a "v" prefix (e.g. "0.9" -> "v0.9.0"). The second
// return is false when the input is not a usable version.
//
// Constraint operators that pin an exact or minimum version ("=1.2.3",
// "^1.2", "~0.9") are stripped; wildcard and comparison requirements
// are not versions and report false.
func Canonical(s string) (string, bool) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return "", false
	}
	s = strings.TrimLeft(s, "=^~")
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " ,"); i >= 0 {
		s = s[:i]
	}
	if s == "" || strings.ContainsAny(s, "*<>") {
		return "", false
	}
	c := semver.Canonical("v" + s)
	if c == "" {
		return "", false
	}
	return c, true
}

// Compare orders two version strings. Unparseable versions sort first.
func Compare(a, b string) int {
	ca, aok := Canonical(a)
	cb, bok := Canonical(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	return semver.Compare(ca, cb)
}

// Equivalent reports whether two version strings denote the same version
// after canonicalization, so "0.9" and "0.9.0" compare equal.
func Equivalent(a, b string) bool {
	ca, aok := Canonical(a)
	cb, bok := Canonical(b)
	if !aok || !bok {
		return aok == bok && a == b
	}
	return semver.Compare(ca, cb) == 0
}

// Classify returns the stability of a single declared version.
func Classify(s string) Stability {
	c, ok := Canonical(s)
	if !ok {
		return StabilityUnknown
	}
	if semver.Prerelease(c) != "" {
		return StabilityPreRelease
	}
	if semver.Major(c) == "v0" {
		return StabilityUnstable
	}
	return StabilityStable
}

// ClassifyUpdate compares a declared version against the latest known
// version and reports the update risk.
//
// Rust SemVer convention: a major bump is always breaking, and for 0.x
// versions a minor bump is treated as breaking too. Equal versions are
// always current, never safe or breaking.
func ClassifyUpdate(declared, latest string) Breaking {
	d, dok := Canonical(declared)
	l, lok := Canonical(latest)
	if !dok || !lok {
		return BreakingUnknown
	}
	cmp := semver.Compare(d, l)
	if cmp >= 0 {
		return BreakingCurrent
	}
	if semver.Major(d) != semver.Major(l) {
		return BreakingBreaking
	}
	if semver.Major(d) == "v0" && semver.MajorMinor(d) != semver.MajorMinor(l) {
		return BreakingBreaking
	}
	return BreakingSafe
}

// Max returns the highest version in vs, ignoring unparseable entries.
// The returned string is the original form, not the canonical one.
// Returns "" when nothing parses.
func Max(vs []string) string {
	best := ""
	bestC := ""
	for _, v := range vs {
		c, ok := Canonical(v)
		if !ok {
			continue
		}
		if best == "" || semver.Compare(c, bestC) > 0 {
			best, bestC = v, c
		}
	}
	return best
}
