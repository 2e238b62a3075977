package sver

import "strings"

// Closure maps every target reached from a calculation root to the excludes
// its profile declares.
type Closure map[CalculationTarget][]string

// Match reports whether entry is base itself or lies under the directory
// base. An empty base matches everything. "doc" matches "doc" and "doc/a"
// but not "document".
func Match(entry, base string) bool {
	if base == "" || entry == base {
		return true
	}
	return strings.HasPrefix(entry, base) && len(entry) > len(base) && entry[len(base)] == '/'
}

// NormalizeExclude resolves an exclude declared by the config at base to a
// repository-root relative path.
func NormalizeExclude(base, exclude string) string {
	if base == "" {
		return exclude
	}
	return base + "/" + exclude
}

// Containable reports whether some target in set includes entry without
// excluding it itself. Excludes of one target never veto another target.
func Containable(entry string, set Closure) bool {
	for target, excludes := range set {
		if includedBy(entry, target.Path, excludes) {
			return true
		}
	}
	return false
}

func includedBy(entry, base string, excludes []string) bool {
	if !Match(entry, base) {
		return false
	}
	for _, e := range excludes {
		if Match(entry, NormalizeExclude(base, e)) {
			return false
		}
	}
	return true
}
