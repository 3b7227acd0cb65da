// Package version resolves the version_definitions[]/version_patterns[]
// and default_version knobs of §6 against symbol names: a version_pattern
// is "glob + version", matched with doublestar; default_version and
// version_definitions are compared with golang.org/x/mod/semver when they
// are semver-shaped ("LIBFOO_1.0" compares as v1.0; names like
// "LIBFOO_PRIVATE" or "LIBFOO_1.0.1.2" that aren't valid semver compare
// lexicographically, so the ordering is at least deterministic).
package version

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/semver"
)

// Definition is one entry of version_definitions[]: a version node name
// and the glob patterns of symbols assigned to it.
type Definition struct {
	Name     string
	Patterns []string
}

// Pattern is one entry of version_patterns[]: glob + version, per §6.
type Pattern struct {
	Glob    string
	Version string
}

// Matches reports whether name satisfies glob, using doublestar so
// version scripts can use "*" and "?" the way real linker version scripts
// (and shell globs generally) do, including "**" for nested-looking
// C++ namespaces written with a literal "::" separator.
func Matches(glob, name string) bool {
	ok, err := doublestar.Match(glob, name)
	if err != nil {
		return glob == name
	}
	return ok
}

// ResolvePatterns returns the version name to assign to sym given the
// ordered pattern list (first match wins, matching version-script
// semantics), or "" if none match.
func ResolvePatterns(patterns []Pattern, symName string) string {
	for _, p := range patterns {
		if Matches(p.Glob, symName) {
			return p.Version
		}
	}
	return ""
}

// Less orders two version-node names for the default_version /
// version_definitions ordering: semver comparison when both are
// canonical-looking semver strings ("v" prefix, or bare X.Y.Z after a
// name prefix is stripped), otherwise a stable lexicographic fallback so
// the ordering is at least deterministic.
func Less(a, b string) bool {
	va, oka := extractSemver(a)
	vb, okb := extractSemver(b)
	if oka && okb {
		if cmp := semver.Compare(va, vb); cmp != 0 {
			return cmp < 0
		}
	}
	return a < b
}

// extractSemver pulls a "vX.Y.Z"-shaped suffix out of a version node name
// like "LIBFOO_1.2.3" and reports whether one was found.
func extractSemver(name string) (string, bool) {
	idx := strings.LastIndexAny(name, "_-")
	candidate := name
	if idx >= 0 {
		candidate = name[idx+1:]
	}
	if !strings.HasPrefix(candidate, "v") {
		candidate = "v" + candidate
	}
	if semver.IsValid(candidate) {
		return candidate, true
	}
	return "", false
}
