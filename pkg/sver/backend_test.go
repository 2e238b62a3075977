package sver

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"testing"
)

// memBackend is a git-compatible in-memory backend: content ids are git
// blob ids and modes encode to git's raw integers, so digests match what a
// real repository with the same index produces.
type memBackend struct {
	root    string
	entries []Entry
	blobs   map[string][]byte
}

func newMemBackend(t *testing.T) *memBackend {
	t.Helper()
	return &memBackend{root: t.TempDir(), blobs: map[string][]byte{}}
}

func blobID(content []byte) ObjectID {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return ObjectID(h.Sum(nil))
}

func (m *memBackend) add(path string, mode FileMode, content string) {
	id := blobID([]byte(content))
	m.blobs[id.String()] = []byte(content)
	m.entries = append(m.entries, Entry{Path: path, ID: id, Mode: mode})
}

func (m *memBackend) addBlob(path, content string)       { m.add(path, ModeBlob, content) }
func (m *memBackend) addExecutable(path, content string) { m.add(path, ModeBlobExecutable, content) }
func (m *memBackend) addSymlink(path, target string)     { m.add(path, ModeLink, target) }

func (m *memBackend) addGitlink(t *testing.T, path, commit string) {
	t.Helper()
	raw, err := hex.DecodeString(commit)
	if err != nil {
		t.Fatalf("decode commit id: %v", err)
	}
	m.entries = append(m.entries, Entry{Path: path, ID: raw, Mode: ModeCommit})
}

func (m *memBackend) Root() string { return m.root }

func (m *memBackend) Entries() ([]Entry, error) {
	return append([]Entry(nil), m.entries...), nil
}

func (m *memBackend) Lookup(path string) (Entry, bool, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Path == path {
			return m.entries[i], true, nil
		}
	}
	return Entry{}, false, nil
}

func (m *memBackend) ReadBlob(id ObjectID) ([]byte, error) {
	content, ok := m.blobs[id.String()]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", id)
	}
	return content, nil
}

func (m *memBackend) EncodeMode(mode FileMode) uint32 {
	switch mode {
	case ModeBlob:
		return 0o100644
	case ModeBlobExecutable:
		return 0o100755
	case ModeCommit:
		return 0o160000
	case ModeLink:
		return 0o120000
	case ModeTree:
		return 0o040000
	}
	return 0
}
