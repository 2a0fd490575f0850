package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cargo-hoist/manifest"
)

// ConfigFileName is looked up in the workspace root when no --config is given.
const ConfigFileName = "cargo-hoist.yaml"

// Fallback policies used when no operator can answer a prompt.
const (
	FallbackSkip  = "skip"
	FallbackFirst = "first"
)

// Config holds hoisting settings read from cargo-hoist.yaml
type Config struct {
	MinMembers     int      `yaml:"min_members"`
	Tables         []string `yaml:"tables"`
	NonInteractive bool     `yaml:"non_interactive"`
	Fallback       string   `yaml:"fallback"`       // skip or first
	DecisionsFile  string   `yaml:"decisions_file"` // optional rules file
	BackupDir      string   `yaml:"backup_dir"`     // empty disables backups
	LogFile        string   `yaml:"log_file"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	tables := make([]string, len(manifest.MemberTables))
	for i, t := range manifest.MemberTables {
		tables[i] = string(t)
	}
	return Config{
		MinMembers: 1,
		Tables:     tables,
		Fallback:   FallbackSkip,
	}
}

// LoadConfig reads path over the defaults. A missing file is an error only
// when required is set. Relative paths in the file are resolved against the
// file's directory.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve makes relative file settings absolute against baseDir.
func (c *Config) Resolve(baseDir string) {
	for _, p := range []*string{&c.DecisionsFile, &c.BackupDir, &c.LogFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MinMembers < 1 {
		return fmt.Errorf("min_members must be at least 1, got %d", c.MinMembers)
	}
	if _, err := c.DependencyTables(); err != nil {
		return err
	}
	switch c.Fallback {
	case FallbackSkip, FallbackFirst:
	default:
		return fmt.Errorf("unknown fallback %q (expected %s or %s)", c.Fallback, FallbackSkip, FallbackFirst)
	}
	return nil
}

// DependencyTables returns the configured tables.
func (c Config) DependencyTables() ([]manifest.Table, error) {
	if len(c.Tables) == 0 {
		return nil, fmt.Errorf("tables must name at least one dependency table")
	}
	out := make([]manifest.Table, 0, len(c.Tables))
	for _, s := range c.Tables {
		t, err := manifest.ParseTable(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
