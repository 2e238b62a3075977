package object

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when neither the loose object directory nor
// any pack contains the requested object.
var ErrObjectNotFound = errors.New("object not found")

// HashSize is the raw length of a git object id (SHA-1).
const HashSize = 20

// Hash is a 40-character lowercase hex-encoded git object id.
type Hash string

// ParseHash validates a hex object id.
func ParseHash(s string) (Hash, error) {
	if len(s) != HashSize*2 {
		return "", fmt.Errorf("hash length must be %d hex chars, got %d", HashSize*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return Hash(s), nil
}

// HashFromBytes encodes a raw object id.
func HashFromBytes(raw []byte) Hash {
	return Hash(hex.EncodeToString(raw))
}

// Bytes returns the raw object id.
func (h Hash) Bytes() ([]byte, error) {
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	if len(raw) != HashSize {
		return nil, fmt.Errorf("hash %q: got %d bytes, want %d", h, len(raw), HashSize)
	}
	return raw, nil
}

// ObjectType identifies the kind of a git object.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)
