// Package config loads engine configuration from YAML with defaults for
// every unset field.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Collab     CollabConfig     `yaml:"collab"`
	Versioning VersioningConfig `yaml:"versioning"`
	Activity   ActivityConfig   `yaml:"activity"`
}

type CollabConfig struct {
	MaxSessions      int `yaml:"max_sessions"`
	MaxCollaborators int `yaml:"max_collaborators"`
}

type VersioningConfig struct {
	HistoryLimit  int `yaml:"history_limit"`
	DiffCacheSize int `yaml:"diff_cache_size"`
}

type ActivityConfig struct {
	MaxEntriesPerSession int `yaml:"max_entries_per_session"`
}

func DefaultConfig() *Config {
	return &Config{
		Collab: CollabConfig{
			MaxSessions:      1000,
			MaxCollaborators: 50,
		},
		Versioning: VersioningConfig{
			HistoryLimit:  100,
			DiffCacheSize: 128,
		},
		Activity: ActivityConfig{
			MaxEntriesPerSession: 1000,
		},
	}
}

// Load reads a YAML config file. Missing fields keep their defaults; a
// missing file is an error, not a silent fallback.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills zero and negative values. Explicit zeros in the
// file are treated as unset.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Collab.MaxSessions <= 0 {
		c.Collab.MaxSessions = defaults.Collab.MaxSessions
	}
	if c.Collab.MaxCollaborators <= 0 {
		c.Collab.MaxCollaborators = defaults.Collab.MaxCollaborators
	}
	if c.Versioning.HistoryLimit <= 0 {
		c.Versioning.HistoryLimit = defaults.Versioning.HistoryLimit
	}
	if c.Versioning.DiffCacheSize <= 0 {
		c.Versioning.DiffCacheSize = defaults.Versioning.DiffCacheSize
	}
	if c.Activity.MaxEntriesPerSession <= 0 {
		c.Activity.MaxEntriesPerSession = defaults.Activity.MaxEntriesPerSession
	}
}
