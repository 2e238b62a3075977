package sver

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultProfile is used when a target string carries no profile suffix.
const DefaultProfile = "default"

// CalculationTarget names one directory (or file) and the profile under
// which it is versioned. It is comparable and used as a map key.
type CalculationTarget struct {
	Path    string
	Profile string
}

// NewTarget builds a target, defaulting an empty profile.
func NewTarget(path, profile string) CalculationTarget {
	if profile == "" {
		profile = DefaultProfile
	}
	return CalculationTarget{Path: path, Profile: profile}
}

func (t CalculationTarget) String() string {
	return t.Path + ":" + t.Profile
}

// configPath is the tracked path of the target's sver.toml.
func (t CalculationTarget) configPath() string {
	return configPathFor(t.Path)
}

var profilePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseTarget splits "<path>[:<profile>]" at the last colon whose suffix is
// a profile token. A colon that only terminates a volume name (a Windows
// drive letter) never introduces a profile.
//
//	service1          -> (service1, default)
//	service1:canary   -> (service1, canary)
//	C:\work\service1  -> (C:\work\service1, default)
func ParseTarget(s string) CalculationTarget {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return NewTarget(s, DefaultProfile)
	}
	head, profile := s[:i], s[i+1:]
	if !profilePattern.MatchString(profile) {
		return NewTarget(s, DefaultProfile)
	}
	if vol := filepath.VolumeName(s[:i+1]); vol != "" && vol == s[:i+1] {
		return NewTarget(s, DefaultProfile)
	}
	return NewTarget(head, profile)
}

// ParseDependency parses a dependency declared in sver.toml. Dependency
// paths are repository-root relative; host separators become "/" and a
// single trailing separator is dropped, so "lib/:prof1" equals "lib:prof1".
func ParseDependency(s string) CalculationTarget {
	t := ParseTarget(s)
	t.Path = filepath.ToSlash(t.Path)
	t.Path = strings.TrimSuffix(t.Path, "/")
	return t
}
