package sver

// FileMode is the kind of a tracked entry, independent of any backend's raw
// mode integers. Backends own the translation table.
type FileMode int

const (
	ModeUnknown FileMode = iota
	ModeBlob
	ModeBlobExecutable
	ModeCommit // embedded repository reference (gitlink)
	ModeLink
	ModeTree
	ModeUnreadable
)

func (m FileMode) String() string {
	switch m {
	case ModeBlob:
		return "blob"
	case ModeBlobExecutable:
		return "blob-executable"
	case ModeCommit:
		return "commit"
	case ModeLink:
		return "link"
	case ModeTree:
		return "tree"
	case ModeUnreadable:
		return "unreadable"
	}
	return "unknown"
}
