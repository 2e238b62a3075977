package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// DefaultDeltaCacheSize is the number of resolved pack entries kept per pack
// so that long delta chains are not re-inflated for every object.
const DefaultDeltaCacheSize = 256

// Store is a read-only view of a git object database: loose objects under
// objects/ab/cdef... plus every pack under objects/pack.
type Store struct {
	root      string // the objects/ directory
	cacheSize int

	packsOnce sync.Once
	packs     []*Packfile
	packsErr  error
}

// NewStore creates a Store over the given objects directory. Packs are
// opened lazily on the first lookup that misses the loose directory.
func NewStore(objectsDir string) *Store {
	return &Store{root: objectsDir, cacheSize: DefaultDeltaCacheSize}
}

// objectPath returns the loose object path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, string(h[:2]), string(h[2:]))
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if _, err := ParseHash(string(h)); err != nil {
		return "", nil, fmt.Errorf("object read: %w", err)
	}

	objType, data, err := s.readLoose(h)
	if err == nil {
		return objType, data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", nil, err
	}

	packs, err := s.loadPacks()
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	for _, p := range packs {
		if !p.Contains(h) {
			continue
		}
		return p.Read(h, s.Read)
	}
	return "", nil, fmt.Errorf("object read %s: %w", h, ErrObjectNotFound)
}

// ReadBlob reads a blob and returns its content.
func (s *Store) ReadBlob(h Hash) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeBlob)
	}
	return data, nil
}

// Close releases every opened pack.
func (s *Store) Close() error {
	var errs []error
	for _, p := range s.packs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) readLoose(h Hash) (ObjectType, []byte, error) {
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: zlib reader: %w", h, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}

	objType, content, err := parseObjectEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if computed := HashObject(objType, content); computed != h {
		return "", nil, fmt.Errorf("object read %s: hash mismatch (computed %s)", h, computed)
	}
	return objType, content, nil
}

// parseObjectEnvelope splits "type len\0content".
func parseObjectEnvelope(raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid header %q", header)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid length %q: %w", parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return ObjectType(parts[0]), content, nil
}

func (s *Store) loadPacks() ([]*Packfile, error) {
	s.packsOnce.Do(func() {
		idxPaths, err := s.listPackIndexPaths()
		if err != nil {
			s.packsErr = err
			return
		}
		for _, idxPath := range idxPaths {
			p, err := OpenPackfile(idxPath, s.cacheSize)
			if err != nil {
				s.packsErr = err
				return
			}
			s.packs = append(s.packs, p)
		}
	})
	return s.packs, s.packsErr
}

func (s *Store) listPackIndexPaths() ([]string, error) {
	packDir := filepath.Join(s.root, "pack")
	entries, err := os.ReadDir(packDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pack dir: %w", err)
	}

	idxPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		idxPaths = append(idxPaths, filepath.Join(packDir, entry.Name()))
	}
	sort.Strings(idxPaths)
	return idxPaths, nil
}
