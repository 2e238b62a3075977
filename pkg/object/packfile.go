package object

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"
)

// maxEntryHeaderSize covers the type/size varint plus an OFS_DELTA distance
// or a REF_DELTA base id.
const maxEntryHeaderSize = 10 + HashSize

// maxDeltaDepth bounds delta chains; git itself defaults to 50.
const maxDeltaDepth = 4096

// packObject is a fully resolved object taken out of a pack.
type packObject struct {
	typ  ObjectType
	data []byte
}

// baseResolver reads a REF_DELTA base, which may live in another pack or in
// the loose object directory.
type baseResolver func(h Hash) (ObjectType, []byte, error)

// Packfile provides random access to the objects of one on-disk pack through
// its idx.
type Packfile struct {
	name  string
	f     *os.File
	size  int64
	idx   *PackIndex
	bases *lru.Cache[uint64, packObject]
}

// OpenPackfile opens pack-<sum>.pack next to the given idx path.
func OpenPackfile(idxPath string, cacheSize int) (*Packfile, error) {
	idxData, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, fmt.Errorf("read pack index %s: %w", filepath.Base(idxPath), err)
	}
	idx, err := ReadPackIndex(idxData)
	if err != nil {
		return nil, fmt.Errorf("parse pack index %s: %w", filepath.Base(idxPath), err)
	}

	packPath := packPathForIndex(idxPath)
	f, err := os.Open(packPath)
	if err != nil {
		return nil, fmt.Errorf("open pack %s: %w", filepath.Base(packPath), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat pack %s: %w", filepath.Base(packPath), err)
	}

	header := make([]byte, packHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("read pack header %s: %w", filepath.Base(packPath), err)
	}
	ph, err := UnmarshalPackHeader(header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pack %s: %w", filepath.Base(packPath), err)
	}
	if int(ph.NumObjects) != idx.Len() {
		f.Close()
		return nil, fmt.Errorf("pack %s: object count %d does not match index count %d", filepath.Base(packPath), ph.NumObjects, idx.Len())
	}

	trailer := make([]byte, HashSize)
	if _, err := f.ReadAt(trailer, info.Size()-HashSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("read pack trailer %s: %w", filepath.Base(packPath), err)
	}
	if HashFromBytes(trailer) != idx.PackChecksum {
		f.Close()
		return nil, fmt.Errorf("pack %s: checksum mismatch between idx and pack", filepath.Base(packPath))
	}

	bases, err := lru.New[uint64, packObject](cacheSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pack %s: base cache: %w", filepath.Base(packPath), err)
	}

	return &Packfile{
		name:  filepath.Base(packPath),
		f:     f,
		size:  info.Size(),
		idx:   idx,
		bases: bases,
	}, nil
}

// Close releases the pack file handle.
func (p *Packfile) Close() error {
	return p.f.Close()
}

// Contains reports whether the pack holds h.
func (p *Packfile) Contains(h Hash) bool {
	_, ok := p.idx.Find(h)
	return ok
}

// Read returns the resolved type and content of h, or ErrObjectNotFound.
func (p *Packfile) Read(h Hash, resolve baseResolver) (ObjectType, []byte, error) {
	entry, ok := p.idx.Find(h)
	if !ok {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrObjectNotFound)
	}
	obj, err := p.readAt(entry.Offset, resolve, 0)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: pack %s: %w", h, p.name, err)
	}
	if computed := HashObject(obj.typ, obj.data); computed != h {
		return "", nil, fmt.Errorf("object read %s: pack %s: hash mismatch (computed %s)", h, p.name, computed)
	}
	return obj.typ, obj.data, nil
}

func (p *Packfile) readAt(offset uint64, resolve baseResolver, depth int) (packObject, error) {
	if depth > maxDeltaDepth {
		return packObject{}, fmt.Errorf("delta chain deeper than %d at offset %d", maxDeltaDepth, offset)
	}
	if obj, ok := p.bases.Get(offset); ok {
		return obj, nil
	}
	if offset < packHeaderSize || int64(offset) >= p.size-HashSize {
		return packObject{}, fmt.Errorf("entry offset %d out of range", offset)
	}

	header := make([]byte, maxEntryHeaderSize)
	n, err := p.f.ReadAt(header, int64(offset))
	if err != nil && err != io.EOF {
		return packObject{}, fmt.Errorf("read entry header at %d: %w", offset, err)
	}
	header = header[:n]

	objType, size, consumed, err := decodePackEntryHeader(header)
	if err != nil {
		return packObject{}, fmt.Errorf("entry at %d: %w", offset, err)
	}

	var obj packObject
	switch objType {
	case PackCommit, PackTree, PackBlob, PackTag:
		data, err := p.inflate(offset+uint64(consumed), size)
		if err != nil {
			return packObject{}, fmt.Errorf("entry at %d: %w", offset, err)
		}
		typ, _ := objType.objectType()
		obj = packObject{typ: typ, data: data}

	case PackOfsDelta:
		distance, dn, err := decodeOfsDeltaDistance(header[consumed:])
		if err != nil {
			return packObject{}, fmt.Errorf("entry at %d: %w", offset, err)
		}
		if distance == 0 || distance > offset {
			return packObject{}, fmt.Errorf("entry at %d: invalid ofs-delta distance %d", offset, distance)
		}
		base, err := p.readAt(offset-distance, resolve, depth+1)
		if err != nil {
			return packObject{}, err
		}
		obj, err = p.patch(base, offset, offset+uint64(consumed+dn), size)
		if err != nil {
			return packObject{}, err
		}

	case PackRefDelta:
		if len(header) < consumed+HashSize {
			return packObject{}, fmt.Errorf("entry at %d: ref-delta base truncated", offset)
		}
		baseHash := HashFromBytes(header[consumed : consumed+HashSize])
		var base packObject
		if e, ok := p.idx.Find(baseHash); ok {
			base, err = p.readAt(e.Offset, resolve, depth+1)
		} else if resolve != nil {
			base.typ, base.data, err = resolve(baseHash)
		} else {
			err = fmt.Errorf("ref-delta base %s: %w", baseHash, ErrObjectNotFound)
		}
		if err != nil {
			return packObject{}, err
		}
		obj, err = p.patch(base, offset, offset+uint64(consumed+HashSize), size)
		if err != nil {
			return packObject{}, err
		}

	default:
		return packObject{}, fmt.Errorf("entry at %d: unsupported packed object type %d", offset, objType)
	}

	p.bases.Add(offset, obj)
	return obj, nil
}

func (p *Packfile) patch(base packObject, offset, deltaStart, deltaSize uint64) (packObject, error) {
	delta, err := p.inflate(deltaStart, deltaSize)
	if err != nil {
		return packObject{}, fmt.Errorf("entry at %d: %w", offset, err)
	}
	data, err := applyDelta(base.data, delta)
	if err != nil {
		return packObject{}, fmt.Errorf("entry at %d: apply delta: %w", offset, err)
	}
	return packObject{typ: base.typ, data: data}, nil
}

// inflate decompresses exactly size bytes from the zlib stream at start. The
// buffer grows with what the stream yields, never with the header's claim.
func (p *Packfile) inflate(start, size uint64) ([]byte, error) {
	if size > math.MaxInt64 {
		return nil, fmt.Errorf("entry size %d out of range", size)
	}
	section := io.NewSectionReader(p.f, int64(start), p.size-HashSize-int64(start))
	zr, err := zlib.NewReader(section)
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, zr, int64(size)); err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return buf.Bytes(), nil
}

func packPathForIndex(idxPath string) string {
	return strings.TrimSuffix(idxPath, ".idx") + ".pack"
}
