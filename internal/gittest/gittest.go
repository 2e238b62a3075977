// Package gittest builds small on-disk git repositories for tests: loose
// objects, an index file, and the matching working tree files.
package gittest

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/odvcencio/sver/pkg/object"
)

// Raw git modes as stored in the index.
const (
	ModeBlob       uint32 = 0o100644
	ModeExecutable uint32 = 0o100755
	ModeLink       uint32 = 0o120000
	ModeGitlink    uint32 = 0o160000
)

// Entry is one staged path.
type Entry struct {
	Path  string
	Hash  object.Hash
	Mode  uint32
	Stage int // 1-3 while a merge conflict is unresolved
}

// Repo is a git repository under a test temp dir.
type Repo struct {
	t       testing.TB
	Root    string
	GitDir  string
	entries map[string]Entry
}

// New initialises an empty non-bare repository.
func New(t testing.TB) *Repo {
	t.Helper()
	root := t.TempDir()
	// t.TempDir may sit behind a symlink (macOS /var); resolve it so that
	// paths compare equal to what repository discovery reports.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	gitDir := filepath.Join(root, ".git")
	for _, d := range []string{"objects", filepath.Join("refs", "heads")} {
		if err := os.MkdirAll(filepath.Join(gitDir, d), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	writeFile(t, filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"))
	writeFile(t, filepath.Join(gitDir, "config"), []byte("[core]\n\trepositoryformatversion = 0\n\tbare = false\n"))
	return &Repo{t: t, Root: root, GitDir: gitDir, entries: make(map[string]Entry)}
}

// WriteObject stores a zlib-compressed loose object and returns its id.
func (r *Repo) WriteObject(objType object.ObjectType, data []byte) object.Hash {
	r.t.Helper()
	h := object.HashObject(objType, data)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	header := []byte(string(objType) + " " + strconv.Itoa(len(data)) + "\x00")
	if _, err := zw.Write(append(header, data...)); err != nil {
		r.t.Fatalf("compress object: %v", err)
	}
	if err := zw.Close(); err != nil {
		r.t.Fatalf("compress object: %v", err)
	}

	dir := filepath.Join(r.GitDir, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.t.Fatalf("mkdir objects: %v", err)
	}
	writeFile(r.t, filepath.Join(dir, string(h[2:])), buf.Bytes())
	return h
}

// AddBlob stages a regular file and writes it to the working tree.
func (r *Repo) AddBlob(path string, content []byte) object.Hash {
	r.t.Helper()
	return r.addFile(path, content, ModeBlob)
}

// AddExecutable stages an executable file.
func (r *Repo) AddExecutable(path string, content []byte) object.Hash {
	r.t.Helper()
	return r.addFile(path, content, ModeExecutable)
}

// AddSymlink stages a symbolic link whose blob is the link text.
func (r *Repo) AddSymlink(link, target string) object.Hash {
	r.t.Helper()
	h := r.WriteObject(object.TypeBlob, []byte(target))
	abs := filepath.Join(r.Root, filepath.FromSlash(link))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", link, err)
	}
	if err := os.Symlink(target, abs); err != nil {
		r.t.Fatalf("symlink %s: %v", link, err)
	}
	r.Stage(Entry{Path: link, Hash: h, Mode: ModeLink})
	return h
}

// AddGitlink stages a submodule reference to commit.
func (r *Repo) AddGitlink(path string, commit object.Hash) {
	r.t.Helper()
	if err := os.MkdirAll(filepath.Join(r.Root, filepath.FromSlash(path)), 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", path, err)
	}
	r.Stage(Entry{Path: path, Hash: commit, Mode: ModeGitlink})
}

// WriteWorktreeFile writes a file without staging it.
func (r *Repo) WriteWorktreeFile(path string, content []byte) {
	r.t.Helper()
	abs := filepath.Join(r.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", path, err)
	}
	writeFile(r.t, abs, content)
}

// Stage records an entry and rewrites the index file.
func (r *Repo) Stage(e Entry) {
	r.t.Helper()
	r.entries[e.Path] = e
	r.WriteIndex()
}

// Path joins the repository root with a slash-separated relative path.
func (r *Repo) Path(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

func (r *Repo) addFile(path string, content []byte, mode uint32) object.Hash {
	r.t.Helper()
	h := r.WriteObject(object.TypeBlob, content)
	perm := os.FileMode(0o644)
	if mode == ModeExecutable {
		perm = 0o755
	}
	abs := r.Path(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(abs, content, perm); err != nil {
		r.t.Fatalf("write %s: %v", path, err)
	}
	r.Stage(Entry{Path: path, Hash: h, Mode: mode})
	return h
}

// WriteIndex serialises the staged entries as a version 2 index.
func (r *Repo) WriteIndex() {
	r.t.Helper()
	writeFile(r.t, filepath.Join(r.GitDir, "index"), EncodeIndex(r.t, r.sortedEntries()))
}

func (r *Repo) sortedEntries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// EncodeIndex produces version 2 index bytes for entries, which must already
// be sorted by path and stage.
func EncodeIndex(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("DIRC")
	_ = binary.Write(&buf, binary.BigEndian, uint32(2))
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(entries)))

	for _, e := range entries {
		raw, err := e.Hash.Bytes()
		if err != nil {
			t.Fatalf("entry %s: %v", e.Path, err)
		}
		start := buf.Len()
		// ctime, mtime, dev, ino
		buf.Write(make([]byte, 24))
		_ = binary.Write(&buf, binary.BigEndian, e.Mode)
		// uid, gid, size
		buf.Write(make([]byte, 12))
		buf.Write(raw)
		nameLen := len(e.Path)
		if nameLen > 0x0fff {
			nameLen = 0x0fff
		}
		_ = binary.Write(&buf, binary.BigEndian, uint16(e.Stage)<<12|uint16(nameLen))
		buf.WriteString(e.Path)
		size := (buf.Len() - start + 8) &^ 7
		buf.Write(make([]byte, size-(buf.Len()-start)))
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
