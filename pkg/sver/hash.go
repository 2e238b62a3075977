package sver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"log/slog"
	"sort"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// SortedEntries returns the entries some target in set contains, ordered by
// byte-wise path comparison. Repeated paths collapse to the last record.
func SortedEntries(entries []Entry, set Closure, logger *slog.Logger) []Entry {
	if logger == nil {
		logger = discardLogger
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		ok := Containable(e.Path, set)
		logger.Debug("path containable", slog.String("path", e.Path), slog.Bool("containable", ok))
		if ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	deduped := out[:0]
	for i, e := range out {
		if i+1 < len(out) && out[i+1].Path == e.Path {
			continue
		}
		deduped = append(deduped, e)
	}
	return deduped
}

// HashEntries digests a sorted entry list into a lowercase hex SHA-256.
//
// The target path goes in first. Blobs, executables and links then feed
// their path, raw mode (4 bytes, little endian) and content id; gitlinks feed
// path and commit id only; trees and unreadable entries feed nothing.
func HashEntries(targetPath string, entries []Entry, encodeMode func(FileMode) uint32, logger *slog.Logger) string {
	if logger == nil {
		logger = discardLogger
	}

	h := sha256.New()
	h.Write([]byte(targetPath))

	var mode [4]byte
	for _, e := range entries {
		switch e.Mode {
		case ModeBlob, ModeBlobExecutable, ModeLink:
			logger.Debug("hash entry", slog.String("path", e.Path), slog.String("mode", e.Mode.String()), slog.String("id", e.ID.String()))
			h.Write([]byte(e.Path))
			binary.LittleEndian.PutUint32(mode[:], encodeMode(e.Mode))
			h.Write(mode[:])
			h.Write(e.ID)
		case ModeCommit:
			logger.Debug("hash submodule", slog.String("path", e.Path), slog.String("id", e.ID.String()))
			h.Write([]byte(e.Path))
			h.Write(e.ID)
		default:
			logger.Debug("skip entry", slog.String("path", e.Path), slog.String("mode", e.Mode.String()))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
