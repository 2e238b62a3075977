// Package inspect reports which tracked files a command reads, to help
// decide what a sver.toml should exclude.
package inspect

import (
	"path"
	"sort"

	"github.com/odvcencio/sver/pkg/sver"
)

// Directories returns the repository-relative directories that directly hold
// tracked entries, always including the root (""), sorted.
func Directories(entries []sver.Entry) []string {
	seen := map[string]struct{}{"": {}}
	for _, e := range entries {
		dir := path.Dir(e.Path)
		if dir == "." {
			dir = ""
		}
		seen[dir] = struct{}{}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}
