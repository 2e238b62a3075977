package sver

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigParse marks a sver.toml that is not valid TOML or does not
	// have the profile-table shape.
	ErrConfigParse = errors.New("invalid sver.toml")

	// ErrProfileNotFound marks a profile lookup against a config that does
	// not declare it.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNonUTF8Path marks a tracked path or link target that is not valid
	// UTF-8.
	ErrNonUTF8Path = errors.New("path is not valid UTF-8")
)

// ProfileNotFoundError carries the missing profile name. It matches
// ErrProfileNotFound under errors.Is.
type ProfileNotFoundError struct {
	Profile string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile[%s] is not found", e.Profile)
}

func (e *ProfileNotFoundError) Is(target error) bool {
	return target == ErrProfileNotFound
}
