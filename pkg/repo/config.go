package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
)

// readCoreBare reports core.bare from <dir>/config. A missing config, or
// one without the key, means non-bare.
func readCoreBare(dir string) (bool, error) {
	p := filepath.Join(dir, "config")
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return false, nil
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		AllowBooleanKeys:        true,
		SkipUnrecognizableLines: true,
	}, p)
	if err != nil {
		return false, fmt.Errorf("read config %s: %w", p, err)
	}
	if !cfg.HasSection("core") {
		return false, nil
	}
	core := cfg.Section("core")
	if !core.HasKey("bare") {
		return false, nil
	}
	bare, err := core.Key("bare").Bool()
	if err != nil {
		return false, fmt.Errorf("read config %s: core.bare: %w", p, err)
	}
	return bare, nil
}
