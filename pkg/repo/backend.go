package repo

import (
	"fmt"
	"unicode/utf8"

	"github.com/odvcencio/sver/pkg/object"
	"github.com/odvcencio/sver/pkg/sver"
)

var _ sver.Backend = (*Repo)(nil)

// Root returns the working directory.
func (r *Repo) Root() string { return r.RootDir }

// Entries lists the merged (stage 0) index entries in index order. Paths in
// an unresolved conflict are left out, matching Lookup.
func (r *Repo) Entries() ([]sver.Entry, error) {
	idx, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	entries := make([]sver.Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		if e.Stage != 0 {
			continue
		}
		if !utf8.ValidString(e.Path) {
			return nil, fmt.Errorf("index entry %q: %w", e.Path, sver.ErrNonUTF8Path)
		}
		entry, err := toEntry(e.Path, e.Hash, e.Mode)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Lookup returns the stage 0 index entry at path.
func (r *Repo) Lookup(path string) (sver.Entry, bool, error) {
	idx, err := r.loadIndex()
	if err != nil {
		return sver.Entry{}, false, err
	}
	e, ok := idx.Lookup(path)
	if !ok {
		return sver.Entry{}, false, nil
	}
	entry, err := toEntry(e.Path, e.Hash, e.Mode)
	if err != nil {
		return sver.Entry{}, false, err
	}
	return entry, true, nil
}

// ReadBlob reads a blob from loose objects or packs.
func (r *Repo) ReadBlob(id sver.ObjectID) ([]byte, error) {
	return r.Store.ReadBlob(object.HashFromBytes(id))
}

// EncodeMode maps a FileMode to git's raw mode integer.
func (r *Repo) EncodeMode(mode sver.FileMode) uint32 { return EncodeMode(mode) }

func toEntry(path string, h object.Hash, mode uint32) (sver.Entry, error) {
	raw, err := h.Bytes()
	if err != nil {
		return sver.Entry{}, fmt.Errorf("index entry %s: %w", path, err)
	}
	return sver.Entry{Path: path, ID: raw, Mode: DecodeMode(mode)}, nil
}
