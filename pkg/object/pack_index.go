package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	packIndexVersion        = 2
	packIndexHeaderSize     = 8
	packIndexFanoutSize     = 256 * 4
	packIndexTrailerSize    = 2 * HashSize
	packIndexLargeOffsetBit = uint32(1 << 31)
)

var packIndexMagic = [4]byte{0xff, 't', 'O', 'c'}

// PackIndexEntry is one row in a pack index file.
type PackIndexEntry struct {
	Hash   Hash
	Offset uint64
	CRC32  uint32
}

// PackIndex is an in-memory representation of an idx v2 file.
type PackIndex struct {
	fanout        [256]uint32
	names         []byte // n * HashSize raw ids, sorted
	entries       []PackIndexEntry
	PackChecksum  Hash
	IndexChecksum Hash
}

// Len returns the number of objects described by the index.
func (idx *PackIndex) Len() int {
	return len(idx.entries)
}

// Find performs fanout-bounded binary search for a hash in the index.
func (idx *PackIndex) Find(h Hash) (PackIndexEntry, bool) {
	raw, err := h.Bytes()
	if err != nil {
		return PackIndexEntry{}, false
	}

	bucket := int(raw[0])
	start := 0
	if bucket > 0 {
		start = int(idx.fanout[bucket-1])
	}
	end := int(idx.fanout[bucket])
	if end <= start {
		return PackIndexEntry{}, false
	}

	i := start + sort.Search(end-start, func(i int) bool {
		return bytes.Compare(idx.name(start+i), raw) >= 0
	})
	if i < end && bytes.Equal(idx.name(i), raw) {
		return idx.entries[i], true
	}
	return PackIndexEntry{}, false
}

func (idx *PackIndex) name(i int) []byte {
	return idx.names[i*HashSize : (i+1)*HashSize]
}

// ReadPackIndex parses and validates a git idx v2 file.
//
// Layout: magic, version, 256-entry fanout, sorted object ids, CRC32 table,
// 31-bit offset table, 64-bit large-offset table, pack checksum, idx
// checksum.
func ReadPackIndex(data []byte) (*PackIndex, error) {
	minLen := packIndexHeaderSize + packIndexFanoutSize + packIndexTrailerSize
	if len(data) < minLen {
		return nil, fmt.Errorf("pack index too short: %d", len(data))
	}
	if !bytes.Equal(data[:4], packIndexMagic[:]) {
		return nil, fmt.Errorf("invalid pack index magic %q", data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != packIndexVersion {
		return nil, fmt.Errorf("unsupported pack index version %d", version)
	}

	sum := sha1.Sum(data[:len(data)-HashSize])
	if !bytes.Equal(data[len(data)-HashSize:], sum[:]) {
		return nil, fmt.Errorf("pack index checksum mismatch")
	}

	var fanout [256]uint32
	cursor := packIndexHeaderSize
	for i := 0; i < 256; i++ {
		fanout[i] = binary.BigEndian.Uint32(data[cursor:])
		if i > 0 && fanout[i] < fanout[i-1] {
			return nil, fmt.Errorf("pack index fanout is not monotonic at %d", i)
		}
		cursor += 4
	}
	n := int(fanout[255])

	namesLen := n * HashSize
	crcLen := n * 4
	offsetLen := n * 4
	if cursor+namesLen+crcLen+offsetLen+packIndexTrailerSize > len(data) {
		return nil, fmt.Errorf("pack index truncated")
	}

	names := data[cursor : cursor+namesLen]
	cursor += namesLen
	crcs := data[cursor : cursor+crcLen]
	cursor += crcLen
	offsets := data[cursor : cursor+offsetLen]
	cursor += offsetLen
	large := data[cursor : len(data)-packIndexTrailerSize]
	if len(large)%8 != 0 {
		return nil, fmt.Errorf("pack index large-offset table has %d trailing bytes", len(large)%8)
	}

	entries := make([]PackIndexEntry, n)
	for i := 0; i < n; i++ {
		raw := names[i*HashSize : (i+1)*HashSize]
		if i > 0 && bytes.Compare(names[(i-1)*HashSize:i*HashSize], raw) >= 0 {
			return nil, fmt.Errorf("pack index hash table is not sorted at %d", i)
		}
		if bucket := int(raw[0]); i >= int(fanout[bucket]) || (bucket > 0 && i < int(fanout[bucket-1])) {
			return nil, fmt.Errorf("pack index fanout does not cover entry %d", i)
		}

		off32 := binary.BigEndian.Uint32(offsets[i*4:])
		offset := uint64(off32)
		if off32&packIndexLargeOffsetBit != 0 {
			ref := int(off32 &^ packIndexLargeOffsetBit)
			if (ref+1)*8 > len(large) {
				return nil, fmt.Errorf("pack index invalid large offset reference %d", ref)
			}
			offset = binary.BigEndian.Uint64(large[ref*8:])
		}
		entries[i] = PackIndexEntry{
			Hash:   HashFromBytes(raw),
			CRC32:  binary.BigEndian.Uint32(crcs[i*4:]),
			Offset: offset,
		}
	}

	trailer := data[len(data)-packIndexTrailerSize:]
	return &PackIndex{
		fanout:        fanout,
		names:         names,
		entries:       entries,
		PackChecksum:  HashFromBytes(trailer[:HashSize]),
		IndexChecksum: HashFromBytes(trailer[HashSize:]),
	}, nil
}
