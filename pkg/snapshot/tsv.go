package snapshot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/depscope/depscope/pkg/analysis"
	"github.com/depscope/depscope/pkg/manifest"
	"github.com/depscope/depscope/pkg/version"
)

// Hydration errors. All three wrap into ErrCorrupt-style hard
// failures: a damaged artifact never yields a partial snapshot.
var (
	ErrCorrupt       = errors.New("corrupt snapshot artifact")
	ErrSchemaVersion = errors.New("snapshot schema version mismatch")
	ErrForeignKey    = errors.New("snapshot foreign key violation")
)

// Section names in artifact order.
const (
	sectionAggregation = "AGGREGATION METRICS"
	sectionRepos       = "REPO LIST"
	sectionDecls       = "DEP VERSIONS LIST"
	sectionPackages    = "DEP LATEST LIST"
	sectionMappings    = "VERSION MAP LIST"
)

func sectionHeader(name string) string {
	return fmt.Sprintf("#------ SECTION : %s --------#", name)
}

// MarshalTSV renders the snapshot as the five-section TSV artifact.
func (s *Snapshot) MarshalTSV() []byte {
	var b bytes.Buffer
	w := func(cols ...string) {
		b.WriteString(strings.Join(cols, "\t"))
		b.WriteByte('\n')
	}

	a := s.Aggregation
	w(sectionHeader(sectionAggregation))
	w("METRIC", "VALUE")
	for _, kv := range [][2]string{
		{"schema_version", strconv.Itoa(a.SchemaVersion)},
		{"generation_id", a.GenerationID},
		{"generated_at", a.GeneratedAt.UTC().Format(time.RFC3339)},
		{"root", a.Root},
		{"hub_name", a.HubName},
		{"hub_version", a.HubVersion},
		{"total_repos", strconv.Itoa(a.TotalRepos)},
		{"total_declarations", strconv.Itoa(a.TotalDeclarations)},
		{"total_packages", strconv.Itoa(a.TotalPackages)},
		{"source_crate", strconv.Itoa(a.SourceCrate)},
		{"source_local", strconv.Itoa(a.SourceLocal)},
		{"source_git", strconv.Itoa(a.SourceGit)},
		{"source_workspace", strconv.Itoa(a.SourceWorkspace)},
		{"hub_current", strconv.Itoa(a.HubCurrent)},
		{"hub_outdated", strconv.Itoa(a.HubOutdated)},
		{"hub_ahead", strconv.Itoa(a.HubAhead)},
		{"hub_gap", strconv.Itoa(a.HubGap)},
		{"hub_none", strconv.Itoa(a.HubNone)},
		{"breaking", strconv.Itoa(a.Breaking)},
		{"safe", strconv.Itoa(a.Safe)},
		{"current", strconv.Itoa(a.Current)},
		{"unknown_risk", strconv.Itoa(a.UnknownRisk)},
		{"stable", strconv.Itoa(a.Stable)},
		{"unstable", strconv.Itoa(a.Unstable)},
		{"pre_release", strconv.Itoa(a.PreRelease)},
		{"conflicts", strconv.Itoa(a.Conflicts)},
	} {
		w(kv[0], kv[1])
	}

	w(sectionHeader(sectionRepos))
	w("REPO_ID", "NAME", "PATH", "PARENT", "VERSION", "MOD_TIME", "DEP_COUNT", "HUB_STATUS", "HUB_VERSION", "HUB_RELATION")
	for _, r := range s.Repos {
		w(strconv.Itoa(r.ID), r.Name, r.Path, r.Parent, r.Version,
			strconv.FormatInt(r.ModTime, 10), strconv.Itoa(r.DepCount),
			r.HubStatus, r.HubVersion, string(r.HubRelation))
	}

	w(sectionHeader(sectionDecls))
	w("DEP_ID", "REPO_ID", "PACKAGE", "VERSION", "KIND", "SOURCE_TYPE", "SOURCE_VALUE", "FEATURES")
	for _, d := range s.Declarations {
		w(strconv.Itoa(d.ID), strconv.Itoa(d.RepoID), d.Package, d.Version,
			string(d.Kind), string(d.SourceKind), d.SourceValue, joinList(d.Features))
	}

	w(sectionHeader(sectionPackages))
	w("PACKAGE_ID", "PACKAGE", "LATEST", "SOURCE_TYPE", "LOCATOR", "HUB_VERSION", "HUB_STATUS", "USED_BY", "TIER", "CONFLICT", "DECLARED")
	for _, p := range s.Packages {
		w(strconv.Itoa(p.ID), p.Name, p.Latest, string(p.Source), p.Locator,
			p.HubVersion, string(p.HubStatus),
			strconv.Itoa(p.UsedBy), string(p.Tier), strconv.FormatBool(p.Conflict), joinList(p.Declared))
	}

	w(sectionHeader(sectionMappings))
	w("MAP_ID", "DEP_ID", "REPO_ID", "PACKAGE_ID", "DECLARED", "LATEST", "STABILITY", "BREAKING")
	for _, m := range s.Mappings {
		w(strconv.Itoa(m.ID), strconv.Itoa(m.DeclID), strconv.Itoa(m.RepoID),
			strconv.Itoa(m.PackageID), m.Declared, m.Latest, string(m.Stability), string(m.Breaking))
	}

	return b.Bytes()
}

// Write stores the artifact atomically: the new content lands in a
// temp file first and replaces the old artifact with a rename, so a
// crash mid-write never leaves a truncated cache behind.
func (s *Snapshot) Write(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".depscope-*.tsv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(s.MarshalTSV()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load hydrates a snapshot from disk and validates it. Any structural
// damage is a hard error.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalTSV(data)
}

// UnmarshalTSV parses and validates the artifact. The schema version
// must match and every cross-reference must resolve.
func UnmarshalTSV(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	section := ""
	headerSeen := false
	lineNo := 0

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#------ SECTION : ") {
			section = strings.TrimSuffix(strings.TrimPrefix(line, "#------ SECTION : "), " --------#")
			headerSeen = false
			continue
		}
		if section == "" {
			return nil, fmt.Errorf("%w: content before first section (line %d)", ErrCorrupt, lineNo)
		}
		if !headerSeen {
			// Column header row.
			headerSeen = true
			continue
		}
		cols := strings.Split(line, "\t")
		if err := s.parseRow(section, cols); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if s.Aggregation.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: artifact has %d, expected %d",
			ErrSchemaVersion, s.Aggregation.SchemaVersion, SchemaVersion)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) parseRow(section string, cols []string) error {
	switch section {
	case sectionAggregation:
		if len(cols) != 2 {
			return fmt.Errorf("metric row needs 2 columns, got %d", len(cols))
		}
		return s.parseMetric(cols[0], cols[1])

	case sectionRepos:
		if len(cols) != 10 {
			return fmt.Errorf("repo row needs 10 columns, got %d", len(cols))
		}
		id, err := atoi(cols[0], "REPO_ID")
		if err != nil {
			return err
		}
		mod, err := strconv.ParseInt(cols[5], 10, 64)
		if err != nil {
			return fmt.Errorf("MOD_TIME %q: %v", cols[5], err)
		}
		count, err := atoi(cols[6], "DEP_COUNT")
		if err != nil {
			return err
		}
		s.Repos = append(s.Repos, Repo{
			ID: id, Name: cols[1], Path: cols[2], Parent: cols[3], Version: cols[4],
			ModTime: mod, DepCount: count, HubStatus: cols[7], HubVersion: cols[8],
			HubRelation: analysis.HubStatus(cols[9]),
		})
		return nil

	case sectionDecls:
		if len(cols) != 8 {
			return fmt.Errorf("declaration row needs 8 columns, got %d", len(cols))
		}
		id, err := atoi(cols[0], "DEP_ID")
		if err != nil {
			return err
		}
		repoID, err := atoi(cols[1], "REPO_ID")
		if err != nil {
			return err
		}
		s.Declarations = append(s.Declarations, Declaration{
			ID: id, RepoID: repoID, Package: cols[2], Version: cols[3],
			Kind: manifest.DepKind(cols[4]), SourceKind: manifest.SourceKind(cols[5]),
			SourceValue: cols[6], Features: splitList(cols[7]),
		})
		return nil

	case sectionPackages:
		if len(cols) != 11 {
			return fmt.Errorf("package row needs 11 columns, got %d", len(cols))
		}
		id, err := atoi(cols[0], "PACKAGE_ID")
		if err != nil {
			return err
		}
		usedBy, err := atoi(cols[7], "USED_BY")
		if err != nil {
			return err
		}
		conflict, err := strconv.ParseBool(cols[9])
		if err != nil {
			return fmt.Errorf("CONFLICT %q: %v", cols[9], err)
		}
		s.Packages = append(s.Packages, Package{
			ID: id, Name: cols[1], Latest: cols[2], Source: manifest.SourceKind(cols[3]),
			Locator: cols[4], HubVersion: cols[5], HubStatus: analysis.HubStatus(cols[6]),
			UsedBy: usedBy, Tier: analysis.Tier(cols[8]),
			Conflict: conflict, Declared: splitList(cols[10]),
		})
		return nil

	case sectionMappings:
		if len(cols) != 8 {
			return fmt.Errorf("mapping row needs 8 columns, got %d", len(cols))
		}
		ids := make([]int, 4)
		for i, name := range []string{"MAP_ID", "DEP_ID", "REPO_ID", "PACKAGE_ID"} {
			v, err := atoi(cols[i], name)
			if err != nil {
				return err
			}
			ids[i] = v
		}
		s.Mappings = append(s.Mappings, Mapping{
			ID: ids[0], DeclID: ids[1], RepoID: ids[2], PackageID: ids[3],
			Declared: cols[4], Latest: cols[5],
			Stability: version.Stability(cols[6]), Breaking: version.Breaking(cols[7]),
		})
		return nil
	}
	return fmt.Errorf("unknown section %q", section)
}

func (s *Snapshot) parseMetric(key, value string) error {
	intField := map[string]*int{
		"schema_version":     &s.Aggregation.SchemaVersion,
		"total_repos":        &s.Aggregation.TotalRepos,
		"total_declarations": &s.Aggregation.TotalDeclarations,
		"total_packages":     &s.Aggregation.TotalPackages,
		"source_crate":       &s.Aggregation.SourceCrate,
		"source_local":       &s.Aggregation.SourceLocal,
		"source_git":         &s.Aggregation.SourceGit,
		"source_workspace":   &s.Aggregation.SourceWorkspace,
		"hub_current":        &s.Aggregation.HubCurrent,
		"hub_outdated":       &s.Aggregation.HubOutdated,
		"hub_ahead":          &s.Aggregation.HubAhead,
		"hub_gap":            &s.Aggregation.HubGap,
		"hub_none":           &s.Aggregation.HubNone,
		"breaking":           &s.Aggregation.Breaking,
		"safe":               &s.Aggregation.Safe,
		"current":            &s.Aggregation.Current,
		"unknown_risk":       &s.Aggregation.UnknownRisk,
		"stable":             &s.Aggregation.Stable,
		"unstable":           &s.Aggregation.Unstable,
		"pre_release":        &s.Aggregation.PreRelease,
		"conflicts":          &s.Aggregation.Conflicts,
	}
	if p, ok := intField[key]; ok {
		v, err := atoi(value, key)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	switch key {
	case "generation_id":
		s.Aggregation.GenerationID = value
	case "generated_at":
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("generated_at %q: %v", value, err)
		}
		s.Aggregation.GeneratedAt = t
	case "root":
		s.Aggregation.Root = value
	case "hub_name":
		s.Aggregation.HubName = value
	case "hub_version":
		s.Aggregation.HubVersion = value
	default:
		// Unknown metrics from the same schema version are tolerated.
	}
	return nil
}

// Validate checks referential integrity: every declaration points at a
// known repo, every mapping at a known declaration, repo, and package.
func (s *Snapshot) Validate() error {
	repos := make(map[int]bool, len(s.Repos))
	for _, r := range s.Repos {
		if repos[r.ID] {
			return fmt.Errorf("%w: duplicate repo id %d", ErrForeignKey, r.ID)
		}
		repos[r.ID] = true
	}
	decls := make(map[int]bool, len(s.Declarations))
	for _, d := range s.Declarations {
		if decls[d.ID] {
			return fmt.Errorf("%w: duplicate declaration id %d", ErrForeignKey, d.ID)
		}
		decls[d.ID] = true
		if !repos[d.RepoID] {
			return fmt.Errorf("%w: declaration %d references missing repo %d", ErrForeignKey, d.ID, d.RepoID)
		}
	}
	pkgs := make(map[int]bool, len(s.Packages))
	for _, p := range s.Packages {
		if pkgs[p.ID] {
			return fmt.Errorf("%w: duplicate package id %d", ErrForeignKey, p.ID)
		}
		pkgs[p.ID] = true
	}
	for _, m := range s.Mappings {
		if !decls[m.DeclID] {
			return fmt.Errorf("%w: mapping %d references missing declaration %d", ErrForeignKey, m.ID, m.DeclID)
		}
		if !repos[m.RepoID] {
			return fmt.Errorf("%w: mapping %d references missing repo %d", ErrForeignKey, m.ID, m.RepoID)
		}
		if !pkgs[m.PackageID] {
			return fmt.Errorf("%w: mapping %d references missing package %d", ErrForeignKey, m.ID, m.PackageID)
		}
	}
	return nil
}

// Lists join on a pipe because Cargo range constraints can carry
// commas (">=1.0, <2.0"); a pipe never appears in a constraint or a
// feature name.
func joinList(vs []string) string {
	if len(vs) == 0 {
		return SentinelNone
	}
	return strings.Join(vs, "|")
}

func splitList(s string) []string {
	if s == "" || s == SentinelNone {
		return nil
	}
	return strings.Split(s, "|")
}

func atoi(s, field string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %v", field, s, err)
	}
	return v, nil
}
