package object

import (
	"errors"
	"fmt"
)

var errDeltaTruncated = errors.New("delta truncated")

// decodeOfsDeltaDistance decodes the backward distance that precedes an
// OFS_DELTA payload. Every continuation adds one before shifting, so each
// distance has exactly one encoding.
func decodeOfsDeltaDistance(data []byte) (uint64, int, error) {
	var d uint64
	for i, b := range data {
		if i > 0 {
			if d > 1<<56 {
				return 0, 0, fmt.Errorf("ofs-delta distance overflows 64 bits")
			}
			d = (d + 1) << 7
		}
		d |= uint64(b & 0x7f)
		if b&0x80 == 0 {
			return d, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("ofs-delta distance truncated")
}

// deltaCursor walks a delta instruction stream.
type deltaCursor struct {
	buf []byte
	pos int
}

func (c *deltaCursor) more() bool { return c.pos < len(c.buf) }

func (c *deltaCursor) next() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, errDeltaTruncated
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// size reads one of the two little-endian base-128 sizes heading a delta.
func (c *deltaCursor) size() (uint64, error) {
	var v uint64
	for shift := uint(0); ; shift += 7 {
		if shift > 63 {
			return 0, fmt.Errorf("delta size overflows 64 bits")
		}
		b, err := c.next()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// copyArgs reads a copy instruction's operands. Bits 0-3 of cmd flag which
// little-endian offset bytes follow, bits 4-6 which length bytes. A zero
// length means 64 KiB.
func (c *deltaCursor) copyArgs(cmd byte) (offset, length uint64, err error) {
	for bit := 0; bit < 7; bit++ {
		if cmd&(1<<bit) == 0 {
			continue
		}
		b, err := c.next()
		if err != nil {
			return 0, 0, err
		}
		if bit < 4 {
			offset |= uint64(b) << (8 * bit)
		} else {
			length |= uint64(b) << (8 * (bit - 4))
		}
	}
	if length == 0 {
		length = 0x10000
	}
	return offset, length, nil
}

func (c *deltaCursor) literal(n int) ([]byte, error) {
	if len(c.buf)-c.pos < n {
		return nil, errDeltaTruncated
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// applyDelta rebuilds an object from its base and a git delta: a header with
// the base and result sizes, then copy (high bit set) and insert (1-127
// literal bytes) instructions.
func applyDelta(base, delta []byte) ([]byte, error) {
	c := &deltaCursor{buf: delta}
	baseSize, err := c.size()
	if err != nil {
		return nil, fmt.Errorf("delta base size: %w", err)
	}
	if baseSize != uint64(len(base)) {
		return nil, fmt.Errorf("delta expects a %d byte base, have %d", baseSize, len(base))
	}
	resultSize, err := c.size()
	if err != nil {
		return nil, fmt.Errorf("delta result size: %w", err)
	}

	// Each instruction byte yields at most 64 KiB.
	if resultSize > uint64(len(delta))*0x10000 {
		return nil, fmt.Errorf("delta result size %d exceeds what %d delta bytes can produce", resultSize, len(delta))
	}
	out := make([]byte, 0, min(resultSize, uint64(len(base)+len(delta))))
	for c.more() {
		cmd, _ := c.next()
		switch {
		case cmd == 0:
			return nil, fmt.Errorf("delta opcode 0 is reserved")
		case cmd&0x80 == 0:
			lit, err := c.literal(int(cmd))
			if err != nil {
				return nil, fmt.Errorf("delta insert: %w", err)
			}
			out = append(out, lit...)
		default:
			off, n, err := c.copyArgs(cmd)
			if err != nil {
				return nil, fmt.Errorf("delta copy: %w", err)
			}
			if off+n < off || off+n > uint64(len(base)) {
				return nil, fmt.Errorf("delta copy [%d, %d) outside %d byte base", off, off+n, len(base))
			}
			out = append(out, base[off:off+n]...)
		}
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta produced %d bytes, header says %d", len(out), resultSize)
	}
	return out, nil
}
