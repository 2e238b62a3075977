// Package output renders calculated versions for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/sver/pkg/sver"
	"gopkg.in/yaml.v3"
)

// Format selects how a set of versions is printed.
type Format string

const (
	VersionOnly Format = "version-only"
	TOML        Format = "toml"
	JSON        Format = "json"
	YAML        Format = "yaml"
)

// Formats lists the accepted --output values.
var Formats = []Format{VersionOnly, TOML, JSON, YAML}

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of %v)", s, Formats)
}

// Length selects the displayed version length.
type Length string

const (
	Short Length = "short"
	Long  Length = "long"
)

// ParseLength maps a flag value to a Length.
func ParseLength(s string) (Length, error) {
	switch Length(s) {
	case Short, Long:
		return Length(s), nil
	}
	return "", fmt.Errorf("unknown version length %q (want short or long)", s)
}

func (l Length) apply(v sver.Version) string {
	if l == Long {
		return v.Long()
	}
	return v.Short()
}

type versionRecord struct {
	RepositoryRoot string `json:"repository_root" toml:"repository_root" yaml:"repository_root"`
	Path           string `json:"path" toml:"path" yaml:"path"`
	Version        string `json:"version" toml:"version" yaml:"version"`
}

type document struct {
	Versions []versionRecord `json:"versions" toml:"versions" yaml:"versions"`
}

// Write renders versions to w in argument order.
func Write(w io.Writer, versions []sver.Version, format Format, length Length) error {
	if format == VersionOnly {
		for _, v := range versions {
			if _, err := fmt.Fprintln(w, length.apply(v)); err != nil {
				return err
			}
		}
		return nil
	}

	doc := document{Versions: make([]versionRecord, 0, len(versions))}
	for _, v := range versions {
		doc.Versions = append(doc.Versions, versionRecord{
			RepositoryRoot: v.RepositoryRoot,
			Path:           v.Path,
			Version:        length.apply(v),
		})
	}

	switch format {
	case TOML:
		if err := toml.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}
