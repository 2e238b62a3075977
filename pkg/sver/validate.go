package sver

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ValidationResult reports the stale references of one profile. Both lists
// keep the order in which the profile declares them.
type ValidationResult struct {
	Target              CalculationTarget
	InvalidExcludes     []string
	InvalidDependencies []string
}

// Valid reports whether every exclude and dependency still resolves.
func (r ValidationResult) Valid() bool {
	return len(r.InvalidExcludes) == 0 && len(r.InvalidDependencies) == 0
}

// String renders the result as the validate command prints it.
func (r ValidationResult) String() string {
	loc := configPathFor(r.Target.Path) + ":[" + r.Target.Profile + "]"
	if r.Valid() {
		return "[OK]\t" + loc + "\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[NG]\t%s\n", loc)
	fmt.Fprintf(&b, "\t\tinvalid_dependency:%s\n", quoteList(r.InvalidDependencies))
	fmt.Fprintf(&b, "\t\tinvalid_exclude:%s\n", quoteList(r.InvalidExcludes))
	return b.String()
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// HasInvalid reports whether any result carries a stale reference.
func HasInvalid(results []ValidationResult) bool {
	for _, r := range results {
		if !r.Valid() {
			return true
		}
	}
	return false
}

// ValidateProfile checks one profile of the config owned by dir against the
// tracked entries. Staleness is reported as data; nothing here fails.
func ValidateProfile(b Backend, entries []Entry, dir, profile string, pc ProfileConfig, logger *slog.Logger) ValidationResult {
	if logger == nil {
		logger = discardLogger
	}

	result := ValidationResult{Target: NewTarget(dir, profile)}
	for _, e := range pc.Excludes {
		if !anyMatch(entries, NormalizeExclude(dir, e)) {
			result.InvalidExcludes = append(result.InvalidExcludes, e)
		}
	}
	for _, d := range pc.Dependencies {
		if !dependencyResolves(b, entries, ParseDependency(d)) {
			result.InvalidDependencies = append(result.InvalidDependencies, d)
		}
	}
	logger.Debug("validated profile",
		slog.String("path", dir),
		slog.String("profile", profile),
		slog.Bool("valid", result.Valid()))
	return result
}

func anyMatch(entries []Entry, base string) bool {
	for _, e := range entries {
		if Match(e.Path, base) {
			return true
		}
	}
	return false
}

// dependencyResolves checks a dependency the way calculation would consume
// it. A named profile needs a directory whose sver.toml declares it; a plain
// file cannot carry a profile.
func dependencyResolves(b Backend, entries []Entry, dep CalculationTarget) bool {
	if dep.Profile == DefaultProfile {
		return anyMatch(entries, dep.Path)
	}

	cfgPath := dep.configPath()
	var cfg *Entry
	for i := range entries {
		switch entries[i].Path {
		case dep.Path:
			return false
		case cfgPath:
			cfg = &entries[i]
		}
	}
	if cfg == nil {
		return false
	}
	content, err := b.ReadBlob(cfg.ID)
	if err != nil {
		return false
	}
	_, err = LoadProfile(content, dep.Profile)
	return err == nil
}
