package sver

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the fixed name of the per-directory config file.
const ConfigFileName = "sver.toml"

// ProfileConfig is one profile table of sver.toml. Excludes are relative to
// the config's directory; dependencies are target strings relative to the
// repository root.
type ProfileConfig struct {
	Excludes     []string `toml:"excludes"`
	Dependencies []string `toml:"dependencies"`
}

// Config is the on-disk schema of sver.toml: top-level tables are profile
// names.
type Config map[string]ProfileConfig

// LocatedConfig is a parsed sver.toml together with the directory that owns
// it. TargetPath is derived from the file's location and never persisted.
type LocatedConfig struct {
	TargetPath string
	Profiles   Config
}

// ConfigFilePath returns the tracked path of the config file.
func (c *LocatedConfig) ConfigFilePath() string {
	return configPathFor(c.TargetPath)
}

// ProfileNames returns the declared profile names in sorted order.
func (c *LocatedConfig) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func configPathFor(dir string) string {
	if dir == "" {
		return ConfigFileName
	}
	return dir + "/" + ConfigFileName
}

func isConfigPath(p string) bool {
	return p == ConfigFileName || strings.HasSuffix(p, "/"+ConfigFileName)
}

// ParseConfig decodes sver.toml content.
func ParseConfig(content []byte) (Config, error) {
	var cfg Config
	if _, err := toml.Decode(string(content), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if cfg == nil {
		cfg = Config{}
	}
	return cfg, nil
}

// LoadProfile decodes content and returns the named profile.
func LoadProfile(content []byte, profile string) (ProfileConfig, error) {
	cfg, err := ParseConfig(content)
	if err != nil {
		return ProfileConfig{}, err
	}
	pc, ok := cfg[profile]
	if !ok {
		return ProfileConfig{}, &ProfileNotFoundError{Profile: profile}
	}
	return pc, nil
}

// LoadAllConfigs parses every tracked sver.toml, in entry order.
func LoadAllConfigs(b Backend, entries []Entry) ([]LocatedConfig, error) {
	var configs []LocatedConfig
	for _, e := range entries {
		if !isConfigPath(e.Path) {
			continue
		}
		content, err := b.ReadBlob(e.ID)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", e.Path, err)
		}
		cfg, err := ParseConfig(content)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", e.Path, err)
		}
		dir := path.Dir(e.Path)
		if dir == "." {
			dir = ""
		}
		configs = append(configs, LocatedConfig{TargetPath: dir, Profiles: cfg})
	}
	return configs, nil
}

// WriteInitialConfig creates a config holding only an empty default profile
// at the filesystem path p. It reports false, and leaves the file alone, when
// something already exists there.
func WriteInitialConfig(p string) (bool, error) {
	if _, err := os.Lstat(p); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("write initial config: %w", err)
	}

	cfg := Config{DefaultProfile: {Excludes: []string{}, Dependencies: []string{}}}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("write initial config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		os.Remove(p)
		return false, fmt.Errorf("write initial config: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return false, fmt.Errorf("write initial config: close: %w", err)
	}
	return true, nil
}
