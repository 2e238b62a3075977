package gittest

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zlib"
	"github.com/odvcencio/sver/pkg/object"
)

// Pack entry type codes.
const (
	packCommit   = 1
	packTree     = 2
	packBlob     = 3
	packTag      = 4
	packOfsDelta = 6
	packRefDelta = 7
)

type countingWriter struct {
	w io.Writer
	n uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

// PackWriter writes a version 2 pack stream and remembers what the matching
// .idx needs: every object's id, offset and CRC-32.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	counter  *countingWriter
	expected uint32
	objects  []packedObject
	finished bool
}

type packedObject struct {
	hash   object.Hash
	offset uint64
	crc    uint32
}

// NewPackWriter writes the pack header for numObjects entries.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1.New()
	counter := &countingWriter{w: io.MultiWriter(out, hasher)}
	pw := &PackWriter{out: out, hasher: hasher, counter: counter, expected: numObjects}

	var header [12]byte
	copy(header[:4], "PACK")
	binary.BigEndian.PutUint32(header[4:8], 2)
	binary.BigEndian.PutUint32(header[8:12], numObjects)
	if _, err := counter.Write(header[:]); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset is the offset the next entry will be written at.
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.n
}

// WriteEntry appends a whole object.
func (p *PackWriter) WriteEntry(objType object.ObjectType, data []byte) (uint64, error) {
	code, err := packTypeCode(objType)
	if err != nil {
		return 0, err
	}
	return p.write(object.HashObject(objType, data), encodeEntryHeader(code, uint64(len(data))), data)
}

// WriteOfsDelta appends target as a delta against the entry at baseOffset.
func (p *PackWriter) WriteOfsDelta(objType object.ObjectType, baseOffset uint64, base, target []byte) (uint64, error) {
	current := p.CurrentOffset()
	if baseOffset >= current {
		return 0, fmt.Errorf("base offset %d must be before current offset %d", baseOffset, current)
	}
	delta := BuildDelta(base, target)
	header := encodeEntryHeader(packOfsDelta, uint64(len(delta)))
	header = append(header, encodeOfsDistance(current-baseOffset)...)
	return p.write(object.HashObject(objType, target), header, delta)
}

// WriteRefDelta appends target as a delta against the object baseHash.
func (p *PackWriter) WriteRefDelta(objType object.ObjectType, baseHash object.Hash, base, target []byte) (uint64, error) {
	raw, err := baseHash.Bytes()
	if err != nil {
		return 0, err
	}
	delta := BuildDelta(base, target)
	header := append(encodeEntryHeader(packRefDelta, uint64(len(delta))), raw...)
	return p.write(object.HashObject(objType, target), header, delta)
}

func (p *PackWriter) write(h object.Hash, header, payload []byte) (uint64, error) {
	if p.finished {
		return 0, fmt.Errorf("pack writer already finished")
	}
	if uint32(len(p.objects)) >= p.expected {
		return 0, fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return 0, fmt.Errorf("compress pack entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("compress pack entry: %w", err)
	}

	offset := p.CurrentOffset()
	crc := crc32.NewIEEE()
	crc.Write(header)
	crc.Write(buf.Bytes())
	if _, err := p.counter.Write(header); err != nil {
		return 0, fmt.Errorf("write pack entry header: %w", err)
	}
	if _, err := p.counter.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("write pack entry: %w", err)
	}
	p.objects = append(p.objects, packedObject{hash: h, offset: offset, crc: crc.Sum32()})
	return offset, nil
}

// Finish writes the pack trailer and returns the .idx bytes for the pack.
func (p *PackWriter) Finish() (sum []byte, idx []byte, err error) {
	if p.finished {
		return nil, nil, fmt.Errorf("pack writer already finished")
	}
	if uint32(len(p.objects)) != p.expected {
		return nil, nil, fmt.Errorf("pack object count mismatch: wrote %d, expected %d", len(p.objects), p.expected)
	}
	sum = p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return nil, nil, fmt.Errorf("write pack trailer: %w", err)
	}
	p.finished = true
	idx, err = encodeIndexV2(p.objects, sum)
	if err != nil {
		return nil, nil, err
	}
	return sum, idx, nil
}

func encodeIndexV2(objects []packedObject, packSum []byte) ([]byte, error) {
	sorted := append([]packedObject(nil), objects...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].hash < sorted[j].hash })

	var buf bytes.Buffer
	buf.Write([]byte{0xff, 't', 'O', 'c'})
	_ = binary.Write(&buf, binary.BigEndian, uint32(2))

	var fanout [256]uint32
	raws := make([][]byte, len(sorted))
	for i, o := range sorted {
		raw, err := o.hash.Bytes()
		if err != nil {
			return nil, err
		}
		raws[i] = raw
		for b := int(raw[0]); b < 256; b++ {
			fanout[b]++
		}
	}
	for _, n := range fanout {
		_ = binary.Write(&buf, binary.BigEndian, n)
	}
	for _, raw := range raws {
		buf.Write(raw)
	}
	for _, o := range sorted {
		_ = binary.Write(&buf, binary.BigEndian, o.crc)
	}
	var large []uint64
	for _, o := range sorted {
		if o.offset < 1<<31 {
			_ = binary.Write(&buf, binary.BigEndian, uint32(o.offset))
			continue
		}
		_ = binary.Write(&buf, binary.BigEndian, uint32(1<<31|len(large)))
		large = append(large, o.offset)
	}
	for _, off := range large {
		_ = binary.Write(&buf, binary.BigEndian, off)
	}
	buf.Write(packSum)
	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

func packTypeCode(t object.ObjectType) (byte, error) {
	switch t {
	case object.TypeCommit:
		return packCommit, nil
	case object.TypeTree:
		return packTree, nil
	case object.TypeBlob:
		return packBlob, nil
	case object.TypeTag:
		return packTag, nil
	}
	return 0, fmt.Errorf("unknown object type %q", t)
}

func encodeEntryHeader(code byte, size uint64) []byte {
	b := code<<4 | byte(size&0x0f)
	size >>= 4
	var out []byte
	for size > 0 {
		out = append(out, b|0x80)
		b = byte(size & 0x7f)
		size >>= 7
	}
	return append(out, b)
}

func encodeOfsDistance(d uint64) []byte {
	out := []byte{byte(d & 0x7f)}
	d >>= 7
	for d > 0 {
		d--
		out = append([]byte{0x80 | byte(d&0x7f)}, out...)
		d >>= 7
	}
	return out
}

// BuildDelta encodes target against base: one copy of the longest common
// prefix followed by literal inserts of the remainder.
func BuildDelta(base, target []byte) []byte {
	var out []byte
	out = appendDeltaVarint(out, uint64(len(base)))
	out = appendDeltaVarint(out, uint64(len(target)))

	prefix := 0
	for prefix < len(base) && prefix < len(target) && prefix < 0xffff && base[prefix] == target[prefix] {
		prefix++
	}
	if prefix > 0 {
		// copy: offset 0 (no offset bytes), size in up to two bytes
		cmd := byte(0x80 | 0x10)
		size := []byte{byte(prefix)}
		if prefix > 0xff {
			cmd |= 0x20
			size = append(size, byte(prefix>>8))
		}
		out = append(out, cmd)
		out = append(out, size...)
	}

	rest := target[prefix:]
	for len(rest) > 0 {
		n := len(rest)
		if n > 0x7f {
			n = 0x7f
		}
		out = append(out, byte(n))
		out = append(out, rest[:n]...)
		rest = rest[n:]
	}
	return out
}

func appendDeltaVarint(out []byte, v uint64) []byte {
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}

// Pack moves the named loose objects into a single pack with an index,
// storing each object after the first of the same type as a delta against
// the previous one. Deltas alternate between OFS and REF encodings.
func (r *Repo) Pack(hashes ...object.Hash) {
	r.t.Helper()
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, uint32(len(hashes)))
	if err != nil {
		r.t.Fatalf("pack: %v", err)
	}

	type prev struct {
		hash   object.Hash
		offset uint64
		data   []byte
	}
	last := map[object.ObjectType]prev{}
	for i, h := range hashes {
		objType, data := r.readLoose(h)
		p, ok := last[objType]
		var offset uint64
		switch {
		case !ok:
			offset, err = pw.WriteEntry(objType, data)
		case i%2 == 1:
			offset, err = pw.WriteOfsDelta(objType, p.offset, p.data, data)
		default:
			offset, err = pw.WriteRefDelta(objType, p.hash, p.data, data)
		}
		if err != nil {
			r.t.Fatalf("pack %s: %v", h, err)
		}
		last[objType] = prev{hash: h, offset: offset, data: data}
	}

	sum, idx, err := pw.Finish()
	if err != nil {
		r.t.Fatalf("pack: %v", err)
	}
	dir := filepath.Join(r.GitDir, "objects", "pack")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.t.Fatalf("mkdir pack: %v", err)
	}
	name := fmt.Sprintf("pack-%x", sum)
	writeFile(r.t, filepath.Join(dir, name+".pack"), buf.Bytes())
	writeFile(r.t, filepath.Join(dir, name+".idx"), idx)

	for _, h := range hashes {
		if err := os.Remove(r.loosePath(h)); err != nil {
			r.t.Fatalf("remove loose %s: %v", h, err)
		}
	}
}

func (r *Repo) loosePath(h object.Hash) string {
	return filepath.Join(r.GitDir, "objects", string(h[:2]), string(h[2:]))
}

func (r *Repo) readLoose(h object.Hash) (object.ObjectType, []byte) {
	r.t.Helper()
	f, err := os.Open(r.loosePath(h))
	if err != nil {
		r.t.Fatalf("open loose %s: %v", h, err)
	}
	defer f.Close()
	zr, err := zlib.NewReader(f)
	if err != nil {
		r.t.Fatalf("inflate %s: %v", h, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		r.t.Fatalf("inflate %s: %v", h, err)
	}
	nul := bytes.IndexByte(raw, 0)
	sp := bytes.IndexByte(raw, ' ')
	if nul < 0 || sp < 0 || sp > nul {
		r.t.Fatalf("loose %s: malformed header", h)
	}
	return object.ObjectType(raw[:sp]), raw[nul+1:]
}
