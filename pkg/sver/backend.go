package sver

import "encoding/hex"

// ObjectID is a backend content id in raw form. The digest is computed over
// these bytes, so the backend's ids must already be strong content hashes.
type ObjectID []byte

func (id ObjectID) String() string {
	return hex.EncodeToString(id)
}

// Entry is one tracked entry: a root-relative "/"-separated path, its
// content id and its decoded mode.
type Entry struct {
	Path string
	ID   ObjectID
	Mode FileMode
}

// Backend is the read-only view of version control that calculation and
// validation need. Entries may come back in any order.
type Backend interface {
	// Root is the working directory the entries belong to.
	Root() string
	// Entries enumerates every tracked entry.
	Entries() ([]Entry, error)
	// Lookup returns the tracked entry at path, if any.
	Lookup(path string) (Entry, bool, error)
	// ReadBlob returns the content of a blob.
	ReadBlob(id ObjectID) ([]byte, error)
	// EncodeMode maps a mode back to the backend's raw integer.
	EncodeMode(mode FileMode) uint32
}
