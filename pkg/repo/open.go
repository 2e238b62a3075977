package repo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/odvcencio/sver/pkg/object"
	"github.com/odvcencio/sver/pkg/sver"
)

// Open searches upward from path for a git working tree and opens it. path
// must exist; it is canonicalized first so that symlinked checkouts resolve
// to the real repository.
func Open(path string, opts ...Option) (*Repo, error) {
	start, err := canonicalize(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if info, err := os.Stat(start); err == nil && !info.IsDir() {
		start = filepath.Dir(start)
	}

	cur := start
	for {
		dotGit := filepath.Join(cur, ".git")
		if info, err := os.Stat(dotGit); err == nil {
			gitDir := dotGit
			if !info.IsDir() {
				gitDir, err = readGitFile(dotGit)
				if err != nil {
					return nil, fmt.Errorf("open: %w", err)
				}
			}
			return newRepo(cur, gitDir, opts)
		}
		if isGitDir(cur) {
			bare, err := readCoreBare(cur)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			if bare {
				return nil, fmt.Errorf("open %s: %w", cur, ErrBareRepository)
			}
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w", path, ErrRepositoryNotFound)
		}
		cur = parent
	}
}

func newRepo(root, gitDir string, opts []Option) (*Repo, error) {
	commonDir, err := readCommonDir(gitDir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// A linked worktree of a bare repository still has a working directory.
	if commonDir == gitDir {
		bare, err := readCoreBare(commonDir)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		if bare {
			return nil, fmt.Errorf("open %s: %w", root, ErrBareRepository)
		}
	}

	r := &Repo{
		RootDir:   root,
		GitDir:    gitDir,
		CommonDir: commonDir,
		Store:     object.NewStore(filepath.Join(commonDir, "objects")),
		logger:    discardLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger.Debug("opened repository",
		slog.String("root", r.RootDir),
		slog.String("git_dir", r.GitDir),
		slog.String("common_dir", r.CommonDir))
	return r, nil
}

// readGitFile follows a ".git" file ("gitdir: <path>"), as written for
// submodules and linked worktrees.
func readGitFile(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("%s: invalid gitfile format", p)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(p), target)
	}
	return filepath.Clean(target), nil
}

// readCommonDir returns the directory that holds objects and config. Linked
// worktrees point at it through a "commondir" file.
func readCommonDir(gitDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		if os.IsNotExist(err) {
			return gitDir, nil
		}
		return "", fmt.Errorf("read commondir: %w", err)
	}
	dir := strings.TrimSpace(string(data))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(gitDir, dir)
	}
	return filepath.Clean(dir), nil
}

// isGitDir reports whether dir itself looks like a git directory.
func isGitDir(dir string) bool {
	for _, name := range []string{"HEAD", "objects", "refs"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func indexPath(gitDir string) string {
	return filepath.Join(gitDir, "index")
}

func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// RelPath converts a filesystem path into the "/"-separated path relative
// to the working directory root. The root itself is "".
func (r *Repo) RelPath(p string) (string, error) {
	abs, err := canonicalize(p)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("relative path %s: %w", p, ErrPathOutsideRepository)
	}
	if rel == "." {
		return "", nil
	}
	if !utf8.ValidString(rel) {
		return "", fmt.Errorf("relative path %q: %w", rel, sver.ErrNonUTF8Path)
	}
	return filepath.ToSlash(rel), nil
}

// OpenTarget parses a "<path>[:<profile>]" argument, opens the repository
// enclosing path and returns the target relative to its root. An empty
// path means the current directory.
func OpenTarget(spec string, opts ...Option) (*Repo, sver.CalculationTarget, error) {
	t := sver.ParseTarget(spec)
	p := t.Path
	if p == "" {
		p = "."
	}
	r, err := Open(p, opts...)
	if err != nil {
		return nil, sver.CalculationTarget{}, err
	}
	rel, err := r.RelPath(p)
	if err != nil {
		r.Close()
		return nil, sver.CalculationTarget{}, err
	}
	target := sver.NewTarget(rel, t.Profile)
	r.logger.Debug("resolved target", slog.String("path", target.Path), slog.String("profile", target.Profile))
	return r, target, nil
}
