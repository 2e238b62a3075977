package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const packHeaderSize = 12

// PackObjectType is the 3-bit type stored in a pack entry header.
type PackObjectType uint8

const (
	PackCommit   PackObjectType = 1
	PackTree     PackObjectType = 2
	PackBlob     PackObjectType = 3
	PackTag      PackObjectType = 4
	PackOfsDelta PackObjectType = 6
	PackRefDelta PackObjectType = 7
)

var wholeObjectTypes = map[PackObjectType]ObjectType{
	PackCommit: TypeCommit,
	PackTree:   TypeTree,
	PackBlob:   TypeBlob,
	PackTag:    TypeTag,
}

// objectType maps a non-delta pack type to its object type.
func (t PackObjectType) objectType() (ObjectType, bool) {
	ot, ok := wholeObjectTypes[t]
	return ot, ok
}

// PackHeader is the 12-byte header: "PACK", version, object count, both
// big-endian.
type PackHeader struct {
	Version    uint32
	NumObjects uint32
}

// UnmarshalPackHeader parses a pack header. Versions 2 and 3 share a layout.
func UnmarshalPackHeader(data []byte) (*PackHeader, error) {
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("pack header too short: got %d bytes", len(data))
	}
	if !bytes.HasPrefix(data, []byte("PACK")) {
		return nil, fmt.Errorf("invalid pack magic %q", data[:4])
	}
	h := &PackHeader{
		Version:    binary.BigEndian.Uint32(data[4:8]),
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}
	if h.Version != 2 && h.Version != 3 {
		return nil, fmt.Errorf("unsupported pack version %d", h.Version)
	}
	return h, nil
}

// decodePackEntryHeader returns the entry type, its inflated size and the
// header length. The first byte holds the type and the low four size bits;
// each continuation byte adds seven more.
func decodePackEntryHeader(data []byte) (PackObjectType, uint64, int, error) {
	var (
		typ  PackObjectType
		size uint64
	)
	for i, b := range data {
		if i == 0 {
			typ = PackObjectType((b >> 4) & 0x7)
			size = uint64(b & 0x0f)
		} else {
			shift := 4 + 7*uint(i-1)
			if shift > 57 {
				return 0, 0, 0, fmt.Errorf("entry size overflows 64 bits")
			}
			size |= uint64(b&0x7f) << shift
		}
		if b&0x80 == 0 {
			return typ, size, i + 1, nil
		}
	}
	return 0, 0, 0, fmt.Errorf("entry header truncated")
}
