// Package index reads the git index ("dircache") file: the staged set of
// tracked entries, independent of what is on disk.
//
// The file has a 12-byte header ("DIRC", version, entry count), the entries
// sorted by path, optional extensions, and a SHA-1 trailer over everything
// before it. Versions 2 and 3 pad every entry to a multiple of eight bytes;
// version 4 drops the padding and prefix-compresses each path against the
// previous one.
package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/odvcencio/sver/pkg/object"
)

const (
	headerSize = 12

	// ctime, mtime, dev, ino, mode, uid, gid, size, object id, flags
	entryFixedSize = 10*4 + object.HashSize + 2

	flagNameMask   = 0x0fff
	flagStageMask  = 0x3000
	flagStageShift = 12
	flagExtended   = 0x4000

	extFlagSkipWorktree = 0x4000
	extFlagIntentToAdd  = 0x2000
)

var magic = [4]byte{'D', 'I', 'R', 'C'}

// Entry is one tracked path.
type Entry struct {
	Path         string
	Hash         object.Hash
	Mode         uint32
	Size         uint32
	Stage        int
	SkipWorktree bool
	IntentToAdd  bool
}

// Index is a parsed index file.
type Index struct {
	Version uint32
	Entries []Entry // sorted by path, then stage
}

// Read loads the index file at path. A missing file is an empty index (a
// repository with nothing staged yet).
func Read(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Index{Version: 2}, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	idx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return idx, nil
}

// Parse decodes raw index file bytes.
func Parse(data []byte) (*Index, error) {
	if len(data) < headerSize+object.HashSize {
		return nil, fmt.Errorf("index too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("invalid index magic %q", data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version < 2 || version > 4 {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}

	body := data[:len(data)-object.HashSize]
	trailer := data[len(data)-object.HashSize:]
	// index.skipHash writes an all-zero trailer.
	if !bytes.Equal(trailer, make([]byte, object.HashSize)) {
		sum := sha1.Sum(body)
		if !bytes.Equal(sum[:], trailer) {
			return nil, fmt.Errorf("index checksum mismatch")
		}
	}

	count := binary.BigEndian.Uint32(data[8:12])
	if maxEntries := (len(body) - headerSize) / (entryFixedSize + 1); uint64(count) > uint64(maxEntries) {
		return nil, fmt.Errorf("entry count %d does not fit in %d bytes", count, len(body)-headerSize)
	}
	idx := &Index{Version: version, Entries: make([]Entry, 0, count)}

	cursor := headerSize
	prevPath := ""
	for i := uint32(0); i < count; i++ {
		entry, n, err := decodeEntry(body[cursor:], version, prevPath)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		idx.Entries = append(idx.Entries, entry)
		prevPath = entry.Path
		cursor += n
	}
	return idx, nil
}

func decodeEntry(data []byte, version uint32, prevPath string) (Entry, int, error) {
	if len(data) < entryFixedSize {
		return Entry{}, 0, fmt.Errorf("truncated entry")
	}

	e := Entry{
		Mode: binary.BigEndian.Uint32(data[24:28]),
		Size: binary.BigEndian.Uint32(data[36:40]),
		Hash: object.HashFromBytes(data[40 : 40+object.HashSize]),
	}
	flags := binary.BigEndian.Uint16(data[60:62])
	e.Stage = int(flags&flagStageMask) >> flagStageShift

	cursor := entryFixedSize
	if flags&flagExtended != 0 {
		if version < 3 {
			return Entry{}, 0, fmt.Errorf("extended flag set in version %d index", version)
		}
		if len(data) < cursor+2 {
			return Entry{}, 0, fmt.Errorf("truncated extended flags")
		}
		ext := binary.BigEndian.Uint16(data[cursor:])
		e.SkipWorktree = ext&extFlagSkipWorktree != 0
		e.IntentToAdd = ext&extFlagIntentToAdd != 0
		cursor += 2
	}

	if version == 4 {
		strip, n, err := decodeStripLength(data[cursor:])
		if err != nil {
			return Entry{}, 0, err
		}
		if strip > uint64(len(prevPath)) {
			return Entry{}, 0, fmt.Errorf("path prefix strip %d exceeds previous path length %d", strip, len(prevPath))
		}
		cursor += n
		nul := bytes.IndexByte(data[cursor:], 0)
		if nul < 0 {
			return Entry{}, 0, fmt.Errorf("unterminated path")
		}
		e.Path = prevPath[:len(prevPath)-int(strip)] + string(data[cursor:cursor+nul])
		return e, cursor + nul + 1, nil
	}

	nameLen := int(flags & flagNameMask)
	if nameLen == flagNameMask {
		nul := bytes.IndexByte(data[cursor:], 0)
		if nul < 0 {
			return Entry{}, 0, fmt.Errorf("unterminated path")
		}
		nameLen = nul
	}
	if len(data) < cursor+nameLen+1 {
		return Entry{}, 0, fmt.Errorf("truncated path")
	}
	e.Path = string(data[cursor : cursor+nameLen])

	// One to eight NUL bytes pad the entry to a multiple of eight.
	size := (cursor + nameLen + 8) &^ 7
	if len(data) < size {
		return Entry{}, 0, fmt.Errorf("truncated entry padding")
	}
	return e, size, nil
}

// decodeStripLength reads the v4 prefix-strip count, encoded like an
// OFS_DELTA distance.
func decodeStripLength(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("truncated path prefix length")
	}
	i := 0
	c := data[i]
	i++
	v := uint64(c & 0x7f)
	for c&0x80 != 0 {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("truncated path prefix length")
		}
		c = data[i]
		i++
		v = ((v + 1) << 7) | uint64(c&0x7f)
	}
	return v, i, nil
}

// Lookup returns the merged (stage 0) entry for path. A path with unresolved
// conflict stages has no stage 0 record and is not found.
func (idx *Index) Lookup(path string) (Entry, bool) {
	i := sort.Search(len(idx.Entries), func(i int) bool {
		return idx.Entries[i].Path >= path
	})
	if i < len(idx.Entries) && idx.Entries[i].Path == path && idx.Entries[i].Stage == 0 {
		return idx.Entries[i], true
	}
	return Entry{}, false
}
