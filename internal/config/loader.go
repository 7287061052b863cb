// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/whotalks/internal/constants"
)

// Loader handles loading configuration files.
type Loader struct {
	homeDir string
}

// NewLoader creates a new config loader.
// The base directory is resolved in this order:
//  1. WHOTALKS_CONFIG environment variable.
//  2. User home directory (~/).
//  3. The working directory, when no home directory exists.
func NewLoader() *Loader {
	if baseDir := os.Getenv("WHOTALKS_CONFIG"); baseDir != "" {
		return &Loader{homeDir: baseDir}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return &Loader{homeDir: homeDir}
	}

	return &Loader{homeDir: "."}
}

// NewLoaderAt creates a loader rooted at homeDir.
func NewLoaderAt(homeDir string) *Loader {
	return &Loader{homeDir: homeDir}
}

// HomeDir returns the directory defaults are anchored to.
func (l *Loader) HomeDir() string {
	return l.homeDir
}

// ConfigPath returns the path to the default config file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.homeDir, constants.DefaultDir, constants.ConfigFile)
}

// Load loads the default config file, falling back to defaults when it does
// not exist, and applies environment variable overrides.
func (l *Loader) Load() (*Config, error) {
	return l.LoadFile(l.ConfigPath(), false)
}

// LoadFile loads the config at path. When required is false a missing file
// yields defaults; otherwise it is an error.
func (l *Loader) LoadFile(path string, required bool) (*Config, error) {
	cfg := DefaultConfig(l.homeDir)

	//nolint:gosec // G304: Path is the operator's own config file.
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !required:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := MergeFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	l.expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandPaths resolves a leading "~/" against the loader's home directory.
func (l *Loader) expandPaths(cfg *Config) {
	cfg.Geo.TokenFile = l.expand(cfg.Geo.TokenFile)
	cfg.Remote.KnownHosts = l.expand(cfg.Remote.KnownHosts)
	for i, f := range cfg.Remote.IdentityFiles {
		cfg.Remote.IdentityFiles[i] = l.expand(f)
	}
}

func (l *Loader) expand(path string) string {
	if path == "~" {
		return l.homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	return path
}
