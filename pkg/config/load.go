package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadResult describes where a configuration came from.
type LoadResult struct {
	// The loaded configuration.
	Config *Config

	// Path where the config was found, empty if defaults were used.
	Source string

	// Whether the embedded defaults were used (no config file found).
	UsedDefaults bool
}

// FromDefaultTOML parses the embedded default document.
func FromDefaultTOML() (*Config, error) {
	var raw map[string]interface{}
	if _, err := toml.Decode(DefaultConfigTOML, &raw); err != nil {
		return nil, fmt.Errorf("parsing embedded default config: %w", err)
	}
	return bindConfig(raw)
}

// Load reads a configuration file, merging it with the embedded
// defaults. Returns an error if the file doesn't exist or can't be
// parsed.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := LoadWithDefaults(string(content))
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadWithDefaults parses a TOML document and deep-merges it onto the
// embedded defaults: user values win, but missing sections or fields
// fall back to the default document (which includes sensible widget
// definitions).
func LoadWithDefaults(userTOML string) (*Config, error) {
	var base map[string]interface{}
	if _, err := toml.Decode(DefaultConfigTOML, &base); err != nil {
		// The embedded document is tested, this never happens.
		return nil, fmt.Errorf("parsing embedded default config: %w", err)
	}

	var user map[string]interface{}
	if _, err := toml.Decode(userTOML, &user); err != nil {
		return nil, err
	}

	deepMerge(base, user)
	return bindConfig(base)
}

// FindAndLoad locates and loads the configuration.
//
// If explicitPath is non-empty it is used strictly: an error is
// returned if it doesn't exist or can't be parsed, with no fallback.
//
// Otherwise the search chain is:
//  1. $XDG_CONFIG_HOME/vibepanel/config.toml
//  2. $HOME/.config/vibepanel/config.toml
//  3. ./config.toml
//
// A config file that exists but fails to load is an error; defaults
// are used only when no candidate exists at all.
func FindAndLoad(explicitPath string) (*LoadResult, error) {
	if explicitPath != "" {
		cfg, err := Load(explicitPath)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: explicitPath}, nil
	}

	paths := SearchPaths()
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			slog.Error("config file exists but failed to load", "path", path, "error", err)
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: path}, nil
	}

	slog.Info("no config file found, using built-in default config")
	slog.Debug("searched", "paths", strings.Join(paths, ", "))

	cfg, err := FromDefaultTOML()
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, UsedDefaults: true}, nil
}

// SearchPaths returns the ordered list of config file paths to try.
func SearchPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "vibepanel", "config.toml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "vibepanel", "config.toml"))
	}
	paths = append(paths, "config.toml")

	return paths
}
