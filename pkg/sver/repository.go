package sver

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Lengths at which a version is displayed.
const (
	ShortVersionLength = 12
	LongVersionLength  = 64
)

// Version is the result of one calculation.
type Version struct {
	RepositoryRoot string
	Path           string
	Version        string
}

// Short returns the 12-character display form.
func (v Version) Short() string {
	if len(v.Version) < ShortVersionLength {
		return v.Version
	}
	return v.Version[:ShortVersionLength]
}

// Long returns the full 64-character digest.
func (v Version) Long() string { return v.Version }

// InitOutcome is what InitConfig found or did.
type InitOutcome int

const (
	InitCreated InitOutcome = iota
	InitAlreadyTracked
	InitAlreadyExists
)

// Message renders the outcome for the directory dir.
func (o InitOutcome) Message(dir string) string {
	switch o {
	case InitAlreadyTracked:
		return "sver.toml already exists"
	case InitAlreadyExists:
		return "sver.toml already exists, but is not committed. path:" + dir
	}
	return "sver.toml is generated. path:" + dir
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger routes debug records to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Repository binds a backend to one calculation target. Each operation asks
// the backend for its entries again; snapshot lifetime is the backend's call.
type Repository struct {
	backend Backend
	target  CalculationTarget
	logger  *slog.Logger
}

// New returns a Repository for target, whose path must already be relative
// to the backend root.
func New(b Backend, target CalculationTarget, opts ...Option) *Repository {
	r := &Repository{backend: b, target: NewTarget(target.Path, target.Profile), logger: discardLogger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Target returns the calculation target.
func (r *Repository) Target() CalculationTarget { return r.target }

// ListSources returns the sorted paths that feed the version.
func (r *Repository) ListSources() ([]string, error) {
	entries, err := r.sortedEntries()
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths, nil
}

// CalcVersion computes the version of the target.
func (r *Repository) CalcVersion() (Version, error) {
	entries, err := r.sortedEntries()
	if err != nil {
		return Version{}, fmt.Errorf("calc version: %w", err)
	}
	sum := HashEntries(r.target.Path, entries, r.backend.EncodeMode, r.logger)
	return Version{
		RepositoryRoot: r.backend.Root(),
		Path:           r.target.Path,
		Version:        sum,
	}, nil
}

func (r *Repository) sortedEntries() ([]Entry, error) {
	entries, err := r.backend.Entries()
	if err != nil {
		return nil, err
	}
	closure, err := Collect(r.backend, entries, r.target, r.logger)
	if err != nil {
		return nil, err
	}
	return SortedEntries(entries, closure, r.logger), nil
}

// InitConfig scaffolds sver.toml in the target directory unless one is
// already tracked or present on disk.
func (r *Repository) InitConfig() (InitOutcome, error) {
	cfgPath := r.target.configPath()
	_, tracked, err := r.backend.Lookup(cfgPath)
	if err != nil {
		return 0, fmt.Errorf("init config: %w", err)
	}
	if tracked {
		return InitAlreadyTracked, nil
	}

	created, err := WriteInitialConfig(filepath.Join(r.backend.Root(), filepath.FromSlash(cfgPath)))
	if err != nil {
		return 0, fmt.Errorf("init config: %w", err)
	}
	if !created {
		return InitAlreadyExists, nil
	}
	r.logger.Debug("wrote initial config", slog.String("path", cfgPath))
	return InitCreated, nil
}

// Validate checks every profile of every tracked sver.toml, in index order
// and then by profile name. An unreadable or malformed config aborts.
func (r *Repository) Validate() ([]ValidationResult, error) {
	entries, err := r.backend.Entries()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	configs, err := LoadAllConfigs(r.backend, entries)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	var results []ValidationResult
	for _, cfg := range configs {
		r.logger.Debug("validate config", slog.String("path", cfg.ConfigFilePath()))
		for _, profile := range cfg.ProfileNames() {
			results = append(results, ValidateProfile(r.backend, entries, cfg.TargetPath, profile, cfg.Profiles[profile], r.logger))
		}
	}
	return results, nil
}
