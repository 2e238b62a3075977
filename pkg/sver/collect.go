package sver

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Collect computes the closure of root: every target reachable through
// declared dependencies and through symlinks inside included directories,
// each with its own excludes. The visited map doubles as the worklist guard,
// so mutually dependent directories terminate after one visit each.
//
// A dependency on a profile its sver.toml does not declare fails the whole
// calculation.
func Collect(b Backend, entries []Entry, root CalculationTarget, logger *slog.Logger) (Closure, error) {
	if logger == nil {
		logger = discardLogger
	}

	closure := make(Closure)
	work := []CalculationTarget{root}
	for len(work) > 0 {
		target := work[len(work)-1]
		work = work[:len(work)-1]

		if _, ok := closure[target]; ok {
			logger.Debug("already added", slog.String("path", target.Path), slog.String("profile", target.Profile))
			continue
		}
		logger.Debug("add dependency", slog.String("path", target.Path), slog.String("profile", target.Profile))

		excludes, deps, err := loadTarget(b, target)
		if err != nil {
			return nil, err
		}
		closure[target] = excludes

		// Reverse so that declaration order is also visiting order.
		for i := len(deps) - 1; i >= 0; i-- {
			work = append(work, ParseDependency(deps[i]))
		}

		links, err := linkTargets(b, entries, target, excludes, logger)
		if err != nil {
			return nil, err
		}
		work = append(work, links...)
	}
	return closure, nil
}

// loadTarget reads the target's profile, if its directory has a sver.toml.
func loadTarget(b Backend, target CalculationTarget) (excludes, deps []string, err error) {
	entry, ok, err := b.Lookup(target.configPath())
	if err != nil {
		return nil, nil, fmt.Errorf("lookup %s: %w", target.configPath(), err)
	}
	if !ok {
		return []string{}, nil, nil
	}

	content, err := b.ReadBlob(entry.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}
	pc, err := LoadProfile(content, target.Profile)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", entry.Path, err)
	}
	if pc.Excludes == nil {
		pc.Excludes = []string{}
	}
	return pc.Excludes, pc.Dependencies, nil
}

// linkTargets resolves every symlink the target includes to the path it
// points at. The link entry itself stays in scope as its own entry.
func linkTargets(b Backend, entries []Entry, target CalculationTarget, excludes []string, logger *slog.Logger) ([]CalculationTarget, error) {
	var out []CalculationTarget
	for _, e := range entries {
		if e.Mode != ModeLink || !includedBy(e.Path, target.Path, excludes) {
			continue
		}
		if !utf8.ValidString(e.Path) {
			return nil, fmt.Errorf("symlink %q: %w", e.Path, ErrNonUTF8Path)
		}
		content, err := b.ReadBlob(e.ID)
		if err != nil {
			return nil, fmt.Errorf("read symlink %s: %w", e.Path, err)
		}
		if !utf8.Valid(content) {
			return nil, fmt.Errorf("symlink %s target: %w", e.Path, ErrNonUTF8Path)
		}
		resolved := ResolveLink(e.Path, string(content))
		logger.Debug("collect link path", slog.String("link", e.Path), slog.String("path", resolved))
		out = append(out, NewTarget(resolved, DefaultProfile))
	}
	return out, nil
}

// ResolveLink resolves link text against the directory holding the link and
// returns a root-relative "/"-joined path. ".." climbs (never above the
// root), "." and empty components are dropped, and a leading root or volume
// carries no meaning inside the repository.
func ResolveLink(linkPath, text string) string {
	var parts []string
	if dir := path.Dir(linkPath); dir != "." && dir != "/" {
		parts = strings.Split(dir, "/")
	}

	text = filepath.ToSlash(text)
	text = text[len(filepath.VolumeName(text)):]
	for _, c := range strings.Split(text, "/") {
		switch c {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "/")
}
