package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/sver/pkg/object"
)

type rawEntry struct {
	path  string
	mode  uint32
	stage int
	ext   uint16 // extended flags; version 3 and up
}

var blobID = object.HashObject(object.TypeBlob, []byte("content"))

// encode builds index bytes the way git lays them out.
func encode(t *testing.T, version uint32, entries []rawEntry, skipHash bool) []byte {
	t.Helper()
	raw, err := blobID.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.WriteString("DIRC")
	binary.Write(&buf, binary.BigEndian, version)
	binary.Write(&buf, binary.BigEndian, uint32(len(entries)))

	prev := ""
	for _, e := range entries {
		start := buf.Len()
		buf.Write(make([]byte, 24))
		binary.Write(&buf, binary.BigEndian, e.mode)
		buf.Write(make([]byte, 8))
		binary.Write(&buf, binary.BigEndian, uint32(7))
		buf.Write(raw)
		flags := uint16(e.stage<<flagStageShift) | uint16(min(len(e.path), flagNameMask))
		if e.ext != 0 {
			flags |= flagExtended
		}
		binary.Write(&buf, binary.BigEndian, flags)
		if e.ext != 0 {
			binary.Write(&buf, binary.BigEndian, e.ext)
		}

		if version == 4 {
			common := 0
			for common < len(prev) && common < len(e.path) && prev[common] == e.path[common] {
				common++
			}
			buf.Write(encodeStrip(uint64(len(prev) - common)))
			buf.WriteString(e.path[common:])
			buf.WriteByte(0)
			prev = e.path
			continue
		}
		buf.WriteString(e.path)
		size := (buf.Len() - start + 8) &^ 7
		buf.Write(make([]byte, size-(buf.Len()-start)))
	}

	if skipHash {
		buf.Write(make([]byte, object.HashSize))
	} else {
		sum := sha1.Sum(buf.Bytes())
		buf.Write(sum[:])
	}
	return buf.Bytes()
}

func encodeStrip(v uint64) []byte {
	out := []byte{byte(v & 0x7f)}
	for v >>= 7; v != 0; v >>= 7 {
		v--
		out = append([]byte{byte(0x80 | (v & 0x7f))}, out...)
	}
	return out
}

func paths(idx *Index) []string {
	out := make([]string, len(idx.Entries))
	for i, e := range idx.Entries {
		out[i] = e.Path
	}
	return out
}

func TestParseVersion2(t *testing.T) {
	data := encode(t, 2, []rawEntry{
		{path: "a.txt", mode: 0o100644},
		{path: "bin/run", mode: 0o100755},
		{path: "sub", mode: 0o160000},
	}, false)

	idx, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if idx.Version != 2 {
		t.Fatalf("Version = %d, want 2", idx.Version)
	}
	if got := strings.Join(paths(idx), ","); got != "a.txt,bin/run,sub" {
		t.Fatalf("paths = %s", got)
	}
	e := idx.Entries[1]
	if e.Mode != 0o100755 || e.Hash != blobID || e.Size != 7 || e.Stage != 0 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestParseVersion3ExtendedFlags(t *testing.T) {
	data := encode(t, 3, []rawEntry{
		{path: "kept.txt", mode: 0o100644},
		{path: "sparse.txt", mode: 0o100644, ext: extFlagSkipWorktree},
		{path: "todo.txt", mode: 0o100644, ext: extFlagIntentToAdd},
	}, false)

	idx, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := strings.Join(paths(idx), ","); got != "kept.txt,sparse.txt,todo.txt" {
		t.Fatalf("paths = %s", got)
	}
	if !idx.Entries[1].SkipWorktree || idx.Entries[1].IntentToAdd {
		t.Fatalf("sparse entry = %+v", idx.Entries[1])
	}
	if !idx.Entries[2].IntentToAdd || idx.Entries[2].SkipWorktree {
		t.Fatalf("intent-to-add entry = %+v", idx.Entries[2])
	}
}

func TestParseVersion4PathCompression(t *testing.T) {
	want := []string{"lib/a/one.go", "lib/a/two.go", "lib/b.go", "main.go"}
	entries := make([]rawEntry, len(want))
	for i, p := range want {
		entries[i] = rawEntry{path: p, mode: 0o100644}
	}

	idx, err := Parse(encode(t, 4, entries, false))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := strings.Join(paths(idx), ","); got != strings.Join(want, ",") {
		t.Fatalf("paths = %s, want %s", got, strings.Join(want, ","))
	}
}

func TestParseConflictStages(t *testing.T) {
	data := encode(t, 2, []rawEntry{
		{path: "conflict.txt", mode: 0o100644, stage: 1},
		{path: "conflict.txt", mode: 0o100644, stage: 2},
		{path: "conflict.txt", mode: 0o100644, stage: 3},
		{path: "merged.txt", mode: 0o100644},
	}, false)

	idx, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for i, e := range idx.Entries[:3] {
		if e.Stage != i+1 {
			t.Fatalf("entry %d stage = %d, want %d", i, e.Stage, i+1)
		}
	}
	if e, ok := idx.Lookup("conflict.txt"); ok {
		t.Fatalf("Lookup(conflict.txt) = %+v, want no stage 0 entry", e)
	}
	if e, ok := idx.Lookup("merged.txt"); !ok || e.Stage != 0 {
		t.Fatalf("Lookup(merged.txt) = %+v, %v, want stage 0", e, ok)
	}
	if _, ok := idx.Lookup("missing.txt"); ok {
		t.Fatal("Lookup(missing.txt) found an entry")
	}
}

func TestParseSkipHashTrailer(t *testing.T) {
	idx, err := Parse(encode(t, 2, []rawEntry{{path: "a", mode: 0o100644}}, true))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(idx.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(idx.Entries))
	}
}

func TestParseRejects(t *testing.T) {
	good := encode(t, 2, []rawEntry{{path: "a.txt", mode: 0o100644}}, false)
	mutate := func(f func([]byte)) []byte {
		b := append([]byte(nil), good...)
		f(b)
		return b
	}

	var stripTooLong bytes.Buffer
	stripTooLong.WriteString("DIRC")
	binary.Write(&stripTooLong, binary.BigEndian, uint32(4))
	binary.Write(&stripTooLong, binary.BigEndian, uint32(1))
	stripTooLong.Write(make([]byte, entryFixedSize))
	stripTooLong.Write(encodeStrip(3))
	stripTooLong.WriteString("x\x00")
	sum := sha1.Sum(stripTooLong.Bytes())
	stripTooLong.Write(sum[:])

	// An all-zero trailer skips the checksum, so the count is unverified.
	hugeCount := encode(t, 2, []rawEntry{{path: "a.txt", mode: 0o100644}}, true)
	binary.BigEndian.PutUint32(hugeCount[8:12], 0xffffffff)

	tests := map[string][]byte{
		"short":          good[:10],
		"magic":          mutate(func(b []byte) { b[0] = 'X' }),
		"version":        mutate(func(b []byte) { b[7] = 9 }),
		"checksum":       mutate(func(b []byte) { b[len(b)-1] ^= 1 }),
		"extended-v2":    encode(t, 2, []rawEntry{{path: "a", mode: 0o100644, ext: extFlagSkipWorktree}}, false),
		"strip-too-long": stripTooLong.Bytes(),
		"huge-count":     hugeCount,
	}
	for name, data := range tests {
		if _, err := Parse(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestReadMissingIsEmpty(t *testing.T) {
	idx, err := Read(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(idx.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(idx.Entries))
	}
}

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "index")
	if err := os.WriteFile(p, encode(t, 2, []rawEntry{{path: "x", mode: 0o120000}}, false), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, err := Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(idx.Entries) != 1 || idx.Entries[0].Mode != 0o120000 {
		t.Fatalf("entries = %+v", idx.Entries)
	}
}
