package repo

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/odvcencio/sver/pkg/index"
	"github.com/odvcencio/sver/pkg/object"
)

var (
	// ErrRepositoryNotFound is returned when no enclosing git repository
	// exists.
	ErrRepositoryNotFound = errors.New("not a git repository (or any parent up to /)")

	// ErrBareRepository is returned for repositories without a working
	// directory.
	ErrBareRepository = errors.New("bare repository has no working directory")

	// ErrPathOutsideRepository is returned when a target path does not lie
	// within the working directory.
	ErrPathOutsideRepository = errors.New("path is outside repository")
)

// Repo represents an opened git working tree. It only ever reads.
type Repo struct {
	RootDir   string        // working directory root
	GitDir    string        // per-worktree git directory (.git, or worktrees/<name>)
	CommonDir string        // shared directory holding objects and config
	Store     *object.Store // loose objects and packs

	logger *slog.Logger

	indexOnce sync.Once
	index     *index.Index
	indexErr  error
}

// Option configures Open.
type Option func(*Repo)

// WithLogger routes debug records to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.logger = logger
		}
	}
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Close releases open pack files.
func (r *Repo) Close() error {
	return r.Store.Close()
}

// loadIndex reads the index once per Repo; a Repo is one snapshot.
func (r *Repo) loadIndex() (*index.Index, error) {
	r.indexOnce.Do(func() {
		r.index, r.indexErr = index.Read(indexPath(r.GitDir))
		if r.indexErr == nil {
			r.logger.Debug("read index",
				slog.Int("version", int(r.index.Version)),
				slog.Int("entries", len(r.index.Entries)))
		}
	})
	return r.index, r.indexErr
}
