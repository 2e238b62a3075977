package repo

import "github.com/odvcencio/sver/pkg/sver"

// Raw git modes as stored in index entries and trees.
const (
	gitModeUnreadable     uint32 = 0
	gitModeTree           uint32 = 0o040000
	gitModeBlob           uint32 = 0o100644
	gitModeBlobExecutable uint32 = 0o100755
	gitModeLink           uint32 = 0o120000
	gitModeCommit         uint32 = 0o160000
)

// DecodeMode maps a raw git mode to a FileMode. Anything outside git's
// canonical set decodes as unknown and does not contribute to a version.
func DecodeMode(raw uint32) sver.FileMode {
	switch raw {
	case gitModeUnreadable:
		return sver.ModeUnreadable
	case gitModeTree:
		return sver.ModeTree
	case gitModeBlob:
		return sver.ModeBlob
	case gitModeBlobExecutable:
		return sver.ModeBlobExecutable
	case gitModeLink:
		return sver.ModeLink
	case gitModeCommit:
		return sver.ModeCommit
	}
	return sver.ModeUnknown
}

// EncodeMode maps a FileMode back to git's raw integer. Unknown encodes as
// unreadable.
func EncodeMode(mode sver.FileMode) uint32 {
	switch mode {
	case sver.ModeTree:
		return gitModeTree
	case sver.ModeBlob:
		return gitModeBlob
	case sver.ModeBlobExecutable:
		return gitModeBlobExecutable
	case sver.ModeLink:
		return gitModeLink
	case sver.ModeCommit:
		return gitModeCommit
	}
	return gitModeUnreadable
}
