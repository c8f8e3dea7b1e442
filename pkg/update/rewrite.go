package update

import (
	"fmt"
	"regexp"
	"strings"
)

// Change is one planned version bump.
type Change struct {
	Package string
	From    string
	To      string
}

// depSections are the manifest tables whose entries may be rewritten.
var depSections = map[string]bool{
	"dependencies":       true,
	"dev-dependencies":   true,
	"build-dependencies": true,
}

var sectionRe = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)

// RewriteManifest applies version bumps to Cargo.toml content by
// editing only the matched version strings. Every other byte,
// including comments, ordering, and formatting, passes through
// untouched. Returns the rewritten content and how many changes were
// applied; a change whose target line is not found is skipped, not an
// error, since the plan may be staler than the file.
func RewriteManifest(data []byte, changes []Change) ([]byte, int) {
	byPkg := map[string]Change{}
	for _, c := range changes {
		byPkg[c.Package] = c
	}

	lines := strings.Split(string(data), "\n")
	section := ""
	subPkg := ""
	applied := 0

	for i, line := range lines {
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section, subPkg = splitSection(m[1])
			continue
		}
		if !depSections[section] {
			continue
		}

		var c Change
		var ok bool
		if subPkg != "" {
			// Inside [dependencies.name]: the version lives on its own line.
			if c, ok = byPkg[subPkg]; !ok || !isVersionKey(line) {
				continue
			}
		} else {
			key := lineKey(line)
			if c, ok = byPkg[key]; !ok {
				continue
			}
		}

		from := fmt.Sprintf("%q", c.From)
		to := fmt.Sprintf("%q", c.To)
		if strings.Contains(line, from) {
			lines[i] = strings.Replace(line, from, to, 1)
			applied++
		}
	}
	return []byte(strings.Join(lines, "\n")), applied
}

// splitSection separates "dependencies.serde" into table and entry.
func splitSection(name string) (section, subPkg string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], strings.Trim(name[i+1:], `"`)
	}
	return name, ""
}

// lineKey extracts the bare key of "name = ..." lines.
func lineKey(line string) string {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(line[:i]), `"`)
}

func isVersionKey(line string) bool {
	return lineKey(line) == "version"
}
