// Package configloader reads YAML and TOML configuration files for the ai
// packages, resolving relative paths against a base directory.
package configloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a supported configuration file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

// Loader loads configuration files relative to baseDir.
type Loader struct {
	baseDir string
}

// NewLoader creates a new configuration loader. An empty baseDir resolves
// paths against the working directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load reads path and decodes it into target according to its extension.
func (l *Loader) Load(path string, target any) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := l.ReadFileWithFallback(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}

	return Decode(format, data, target)
}

// Decode unmarshals data of the given format into target.
func Decode(format Format, data []byte, target any) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("unmarshal YAML: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), target); err != nil {
			return fmt.Errorf("unmarshal TOML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
	return nil
}

// ReadFileWithFallback reads path relative to baseDir, then relative to the
// executable's directory for installed binaries. Absolute paths are read as is.
func (l *Loader) ReadFileWithFallback(path string) ([]byte, error) {
	if filepath.IsAbs(path) {
		return os.ReadFile(path)
	}

	data, err := os.ReadFile(filepath.Join(l.baseDir, path))
	if err == nil {
		return data, nil
	}

	execPath, execErr := os.Executable()
	if execErr != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(filepath.Dir(execPath), l.baseDir, path))
}
